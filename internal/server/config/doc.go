// Package config defines the thingvault-server configuration.
//
//   - spec.go: ServerConfig and its sections
//   - default.go: default values
//   - verify.go: validation, reporting every problem at once
//   - storage.go: conversion to storage.Config and the at-rest transform
//   - sanitize.go: a copy with secrets masked, for logging
//
// Values are loaded by internal/infra/confloader from the YAML file and
// THINGVAULT_* environment variables.
package config
