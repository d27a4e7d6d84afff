// Package jobs defines the closed set of inspection job types and the
// rules that turn raw classifier output or caller-supplied readings into
// an inspection outcome.
package jobs
