// Package main provides the entry point for thingvault-server.
//
// The server serves the thingvault storage commands over HTTP or HTTPS,
// with /health, /ready and /metrics alongside them.
//
// Usage:
//
//	thingvault-server [flags]
//	thingvault-server --config /etc/thingvault/server.yaml
//
// Configuration comes from defaults, then the YAML file, then
// THINGVAULT_* environment variables. Changing log.level in the file
// takes effect without a restart.
package main
