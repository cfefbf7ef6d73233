// Package service implements the Manager, which owns the session
// registries and serves every wire command.
//
// The Manager keeps three registries of session entities:
//
//   - repositories by id, rehydrated from durable storage on demand
//   - apps by token, with a secondary index by (repository, public key)
//   - storages by token, with a secondary index by (app token, storage id)
//
// Every registration, open and thing command first runs an eviction sweep
// (RunGC) that drops entities idle for longer than the configured TTL,
// children before parents. Eviction only affects memory; things and
// repositories stay in the backend.
//
// Wire commands never return Go errors. Failures become ERROR responses
// carrying a domain.ErrorKind.
package service
