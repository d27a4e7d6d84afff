// Command patrol is the inspection dispatch service CLI. `patrol serve`
// runs the daemon; the remaining commands talk to a running daemon over
// its HTTP API.
package main
