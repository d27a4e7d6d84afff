// Package dispatch accepts inspection submissions, hands them to a
// bounded worker pool, and drives each job through image storage,
// classification, result derivation, and persistence.
//
// Submission is a fast path: the caller gets a receipt as soon as a
// processing record exists. All heavy work happens on pool workers, and
// each worker owns its record exclusively until it reaches a terminal
// status.
package dispatch
