package cmap

import (
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestRange(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 6 {
		t.Errorf("sum = %d, want 6", sum)
	}
}

func TestRangeEarlyStop(t *testing.T) {
	m := New[string, int]()
	for _, k := range []string{"a", "b", "c", "d"} {
		m.Set(k, 1)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("visited = %d, want 2", visited)
	}
}

func TestKeysAndValues(t *testing.T) {
	m := New[string, int]()
	m.Set("x", 1)
	m.Set("y", 2)

	keys := m.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
		t.Errorf("Keys() = %v, want [x y]", keys)
	}

	values := m.Values()
	sort.Ints(values)
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("Values() = %v, want [1 2]", values)
	}
}

func TestFind(t *testing.T) {
	m := New[string, int]()
	m.Set("repo1/app", 10)
	m.Set("repo2/app", 20)

	v, ok := m.Find(func(k string, _ int) bool { return strings.HasPrefix(k, "repo2/") })
	if !ok || v != 20 {
		t.Errorf("Find = (%d, %v), want (20, true)", v, ok)
	}

	if _, ok := m.Find(func(string, int) bool { return false }); ok {
		t.Error("Find should return false when nothing matches")
	}
}

func TestFilter(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 5)
	m.Set("c", 9)

	keys := m.Filter(func(_ string, v int) bool { return v > 3 })
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Errorf("Filter() = %v, want [b c]", keys)
	}
}

func TestConcurrentRange(t *testing.T) {
	m := New[string, int]()
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		m.Set(k, 1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Range(func(string, int) bool { return true })
		}()
		go func() {
			defer wg.Done()
			m.Set("z", 2)
			m.Delete("z")
		}()
	}
	wg.Wait()
}
