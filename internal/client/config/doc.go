// Package config loads runtime configuration for the authctl CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-s string     base URL of the auth server
//	-t duration   per-request timeout (e.g. "5s")
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so it can be either a
// string like "5s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://localhost:5001",
//	  "request_timeout": "10s"
//	}
package config
