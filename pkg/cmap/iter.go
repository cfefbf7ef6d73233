package cmap

// Range iterates over all key-value pairs.
//
// The callback returns false to stop iteration. Locks are taken shard by
// shard, so the view may not be consistent across shards. The callback
// must not call back into the map for the same shard.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, s := range m.shards {
		s.mu.RLock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Keys returns all keys.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Count())
	m.Range(func(key K, _ V) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Values returns all values.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Count())
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// Find returns the first value for which pred returns true.
// "First" is in shard iteration order, which is unspecified.
func (m *Map[K, V]) Find(pred func(key K, value V) bool) (V, bool) {
	var (
		found V
		ok    bool
	)
	m.Range(func(k K, v V) bool {
		if pred(k, v) {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

// Filter returns the keys whose entries satisfy pred.
func (m *Map[K, V]) Filter(pred func(key K, value V) bool) []K {
	var keys []K
	m.Range(func(k K, v V) bool {
		if pred(k, v) {
			keys = append(keys, k)
		}
		return true
	})
	return keys
}
