// Package domain defines the session entities of the storage manager.
//
// The trust hierarchy has three levels:
//
//   - Repository: a tenant. Owns a key pair; its public key is handed to
//     clients out of band and anchors the handshake.
//   - App: one registered client public key under a repository.
//   - Storage: one namespace opened by an app, with its own key pair.
//
// Entities are in-memory only, apart from the durable RepositoryRecord.
// Each carries a last-access timestamp that drives eviction. Things are
// owned by the storage backend and never cached here.
//
// Errors crossing the Manager boundary are *DomainError values tagged
// with a closed ErrorKind enumeration.
package domain
