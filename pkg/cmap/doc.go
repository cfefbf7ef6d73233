// Package cmap provides the concurrent registries used by thingvault.
//
// The map is sharded by a murmur3 hash of the key. Each shard is guarded
// by its own RWMutex, so operations on keys that land in different shards
// never contend.
//
// Besides plain Get/Set/Delete the map offers atomic compound operations
// that the session registries depend on:
//
//   - GetOrCreate: never builds two values for the same key under a race
//   - DeleteIf: removes an entry only while a predicate still holds
//   - Compute: read-modify-write of a single entry under the shard lock
//
// Usage:
//
//	m := cmap.New[string, *Storage]()
//	s, created, err := m.GetOrCreate(key, func() (*Storage, error) { ... })
//
// Range and Values take shard read locks one shard at a time, so they see
// a per-shard consistent view, not a global snapshot.
package cmap
