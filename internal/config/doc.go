// Package config loads, normalizes, and validates the TOML configuration
// used by the patrol daemon and CLI.
package config
