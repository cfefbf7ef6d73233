// Package command defines the thingvault-cli commands on urfave/cli/v2.
//
//   - root.go: application, global flags, connection and output helpers
//   - connect.go: saved connection profiles and server status
//   - repository.go: keygen, newclient and register
//   - things.go: open, store, get, exists, modified, discard and find
//   - config.go: CLI configuration and server configuration checks
//
// Every command writes to the application's Writer so it can be driven
// from tests.
package command
