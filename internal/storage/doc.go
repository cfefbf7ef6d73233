// Package storage defines the thing backend abstraction and its
// implementations.
//
// A thing is addressed by a storage key "repositoryId/storageId" and a
// thing id. Three backends implement Db with identical observable
// behavior:
//
//   - FileSystem: one file per thing under a root directory, with
//     per-path locks serializing access to the same thing
//   - SQL: one row per thing in a relational table (SQLite, PostgreSQL)
//   - Badger: one key per thing in an embedded LSM store
//
// Every backend passes thing bodies through an atrest.Transform, which
// compresses and encrypts them when configured.
//
// Pattern arguments are RE2 regular expressions matched anywhere in the
// thing id; the empty pattern matches everything. Results are sorted:
// storage entries first, then things, each by storage key and id.
package storage
