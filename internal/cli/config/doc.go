// Package config holds the CLI's saved state in ~/.thingvault/cli.yaml:
// connection profiles, the output preference and app profiles that
// remember which repository and key file an app uses.
package config
