package cmap

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{64, 64},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)
	m.Set("key1", 150)

	if val, ok := m.Get("key1"); !ok || val != 150 {
		t.Errorf("Get(key1) = (%d, %v), want (150, true)", val, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should return false")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("key1")
	m.Delete("missing")
	if m.Has("key1") {
		t.Error("key1 should not exist after Delete")
	}

	m.Clear()
	if m.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", m.Count())
	}
}

type storageKey string

func TestNamedStringKey(t *testing.T) {
	m := New[storageKey, string]()
	m.Set(storageKey("repo/storage"), "x")
	if v, ok := m.Get("repo/storage"); !ok || v != "x" {
		t.Errorf("Get = (%q, %v), want (\"x\", true)", v, ok)
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.SetIfAbsent("k", 1) {
		t.Error("first SetIfAbsent should succeed")
	}
	if m.SetIfAbsent("k", 2) {
		t.Error("second SetIfAbsent should fail")
	}
	if v, _ := m.Get("k"); v != 1 {
		t.Errorf("Get(k) = %d, want 1", v)
	}
}

func TestGetOrCreate(t *testing.T) {
	m := New[string, int]()

	v, created, err := m.GetOrCreate("k", func() (int, error) { return 7, nil })
	if err != nil || !created || v != 7 {
		t.Fatalf("GetOrCreate = (%d, %v, %v), want (7, true, nil)", v, created, err)
	}

	v, created, err = m.GetOrCreate("k", func() (int, error) {
		t.Error("create should not run for an existing key")
		return 0, nil
	})
	if err != nil || created || v != 7 {
		t.Errorf("GetOrCreate = (%d, %v, %v), want (7, false, nil)", v, created, err)
	}
}

func TestGetOrCreateError(t *testing.T) {
	m := New[string, int]()
	boom := errors.New("boom")

	_, created, err := m.GetOrCreate("k", func() (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if created {
		t.Error("created should be false on error")
	}
	if m.Has("k") {
		t.Error("failed create must not store a value")
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	m := New[string, *int]()
	var calls atomic.Int32
	var wg sync.WaitGroup

	results := make([]*int, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, _ := m.GetOrCreate("shared", func() (*int, error) {
				calls.Add(1)
				n := i
				return &n, nil
			})
			results[i] = v
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("create called %d times, want 1", calls.Load())
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("result %d differs from result 0", i)
		}
	}
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 5)

	v, ok := m.Pop("k")
	if !ok || v != 5 {
		t.Errorf("Pop(k) = (%d, %v), want (5, true)", v, ok)
	}
	if _, ok := m.Pop("k"); ok {
		t.Error("second Pop should return false")
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[string, int]()
	m.Set("k", 5)

	if m.DeleteIf("k", func(v int) bool { return v > 10 }) {
		t.Error("DeleteIf should not delete when predicate is false")
	}
	if !m.Has("k") {
		t.Error("k should still exist")
	}
	if !m.DeleteIf("k", func(v int) bool { return v == 5 }) {
		t.Error("DeleteIf should delete when predicate is true")
	}
	if m.DeleteIf("missing", func(int) bool { return true }) {
		t.Error("DeleteIf on a missing key should return false")
	}
}

func TestCompute(t *testing.T) {
	m := New[string, int]()

	v, ok := m.Compute("k", func(cur int, exists bool) (int, bool) {
		if exists {
			t.Error("k should not exist yet")
		}
		return cur + 1, true
	})
	if !ok || v != 1 {
		t.Errorf("Compute = (%d, %v), want (1, true)", v, ok)
	}

	v, _ = m.Compute("k", func(cur int, _ bool) (int, bool) { return cur + 1, true })
	if v != 2 {
		t.Errorf("Compute = %d, want 2", v)
	}

	if _, ok := m.Compute("k", func(int, bool) (int, bool) { return 0, false }); ok {
		t.Error("Compute with keep=false should report false")
	}
	if m.Has("k") {
		t.Error("k should be removed")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[string, int]()
	var wg sync.WaitGroup
	numGoroutines := 50
	numOps := 200

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("%d-%d", base, j)
				m.Set(key, j)
				m.Get(key)
				m.Has(key)
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != numGoroutines*numOps {
		t.Errorf("Count() = %d, want %d", m.Count(), numGoroutines*numOps)
	}
}
