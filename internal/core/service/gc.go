package service

import (
	"context"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
)

// GCStats reports what one sweep evicted.
type GCStats struct {
	Storages     int
	Apps         int
	Repositories int
	Elapsed      time.Duration
}

// Total returns the number of evicted entities.
func (s GCStats) Total() int {
	return s.Storages + s.Apps + s.Repositories
}

// RunGC evicts idle entities: storages first, then apps no storage refers
// to, then repositories no app refers to. Sweeps are serialized. A sweep
// never fails its caller; a panic inside it is logged and swallowed.
func (m *Manager) RunGC(ctx context.Context) (stats GCStats) {
	m.gcMu.Lock()
	defer m.gcMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log(ctx).Error("gc sweep panicked", "panic", r)
		}
		stats.Elapsed = time.Since(start)
		m.metrics.ObserveGC(stats.Storages, stats.Apps, stats.Repositories)
		if stats.Total() > 0 {
			m.log(ctx).Debug("gc sweep evicted entities",
				"storages", stats.Storages,
				"apps", stats.Apps,
				"repositories", stats.Repositories,
				"elapsed", stats.Elapsed)
		}
	}()

	now := m.now()

	for _, s := range m.storages.Values() {
		idle := func(cur *domain.Storage) bool {
			return cur == s && cur.IdleLongerThan(now, m.ttl)
		}
		if m.storages.DeleteIf(s.Token, idle) {
			m.storagesByKey.DeleteIf(domain.StorageLookupKey(s.App.Token, s.ID), func(cur *domain.Storage) bool {
				return cur == s
			})
			stats.Storages++
		}
	}

	liveApps := make(map[*domain.App]struct{})
	for _, s := range m.storages.Values() {
		liveApps[s.App] = struct{}{}
	}
	for _, a := range m.apps.Values() {
		if _, live := liveApps[a]; live {
			continue
		}
		idle := func(cur *domain.App) bool {
			return cur == a && cur.IdleLongerThan(now, m.ttl)
		}
		if m.apps.DeleteIf(a.Token, idle) {
			m.appsByKey.DeleteIf(a.LookupKey(), func(cur *domain.App) bool {
				return cur == a
			})
			stats.Apps++
		}
	}

	liveRepositories := make(map[string]struct{})
	for _, a := range m.apps.Values() {
		liveRepositories[a.Repository.ID] = struct{}{}
	}
	for _, r := range m.repositories.Values() {
		if _, live := liveRepositories[r.ID]; live {
			continue
		}
		if m.repositories.DeleteIf(r.ID, func(cur *domain.Repository) bool {
			return cur == r && cur.IdleLongerThan(now, m.ttl)
		}) {
			stats.Repositories++
		}
	}

	return stats
}
