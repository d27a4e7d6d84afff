// Package daemon assembles the long-running patrol service: the result
// store, the worker pool, the dispatcher, the notifier, and the HTTP API.
// A file lock under the data directory enforces single-instance execution.
package daemon
