// Package main provides the entry point for thingvault-cli, the
// command-line client for thingvault servers.
package main
