package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
	"github.com/yndnr/thingvault/internal/protocol"
	"github.com/yndnr/thingvault/internal/storage"
	"github.com/yndnr/thingvault/internal/telemetry/logger"
	"github.com/yndnr/thingvault/internal/telemetry/metric"
	"github.com/yndnr/thingvault/pkg/cmap"
	"github.com/yndnr/thingvault/pkg/token"
)

// DefaultEntityTTL is how long an unused entity stays cached.
const DefaultEntityTTL = 20 * time.Minute

// repositoriesStorageID is the storage, under the manager's own id, that
// holds durable repository records.
const repositoriesStorageID = "repositories"

// Manager serves the thingvault commands.
type Manager struct {
	id      string
	db      storage.Db
	ttl     time.Duration
	logger  logger.Logger
	metrics *metric.Registry
	now     func() time.Time

	repositories  *cmap.Map[string, *domain.Repository]
	apps          *cmap.Map[string, *domain.App]     // by token
	appsByKey     *cmap.Map[string, *domain.App]     // by domain.AppLookupKey
	storages      *cmap.Map[string, *domain.Storage] // by token
	storagesByKey *cmap.Map[string, *domain.Storage] // by domain.StorageLookupKey

	// gcMu is held exclusively by sweeps and shared by the request paths
	// that look up an entity and touch it, so a sweep never lands between
	// the two.
	gcMu sync.RWMutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithEntityTTL sets the idle time after which entities are evicted.
func WithEntityTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records command and eviction metrics in r.
func WithMetrics(r *metric.Registry) ManagerOption {
	return func(m *Manager) {
		m.metrics = r
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager. id names the manager instance and is the
// repository segment under which durable repository records are kept.
func NewManager(id string, db storage.Db, opts ...ManagerOption) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("service: db is required")
	}
	if strings.HasPrefix(id, token.RepositoryIDPrefix) {
		return nil, fmt.Errorf("service: manager id %q collides with repository ids", id)
	}
	if err := storage.ValidateStorageKey(storage.ScopeKey(id, repositoriesStorageID)); err != nil {
		return nil, fmt.Errorf("service: manager id: %w", err)
	}

	m := &Manager{
		id:            id,
		db:            db,
		ttl:           DefaultEntityTTL,
		logger:        logger.Nop(),
		now:           time.Now,
		repositories:  cmap.New[string, *domain.Repository](),
		apps:          cmap.New[string, *domain.App](),
		appsByKey:     cmap.New[string, *domain.App](),
		storages:      cmap.New[string, *domain.Storage](),
		storagesByKey: cmap.New[string, *domain.Storage](),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "manager", "manager_id", id)

	if err := m.metrics.RegisterEntities(m.entityCounts); err != nil {
		return nil, fmt.Errorf("service: register metrics: %w", err)
	}
	return m, nil
}

// ID returns the manager id.
func (m *Manager) ID() string { return m.id }

// EntityTTL returns the configured eviction TTL.
func (m *Manager) EntityTTL() time.Duration { return m.ttl }

// Stats holds the number of cached entities.
type Stats struct {
	Repositories int `json:"repositories"`
	Apps         int `json:"apps"`
	Storages     int `json:"storages"`
}

// Stats returns the current registry sizes.
func (m *Manager) Stats() Stats {
	return Stats{
		Repositories: m.repositories.Count(),
		Apps:         m.apps.Count(),
		Storages:     m.storages.Count(),
	}
}

// Ready probes the backend with a read of the repository records.
func (m *Manager) Ready(ctx context.Context) error {
	_, err := m.db.ThingExists(ctx, m.repositoriesKey(), "ready")
	return err
}

func (m *Manager) entityCounts() map[string]int {
	s := m.Stats()
	return map[string]int{
		metric.KindRepository: s.Repositories,
		metric.KindApp:        s.Apps,
		metric.KindStorage:    s.Storages,
	}
}

func (m *Manager) log(ctx context.Context) logger.Logger {
	return m.logger.WithContext(ctx)
}

// finish logs a failed response and records metrics. ThingNotFound is an
// ordinary outcome and is only logged at debug level.
func (m *Manager) finish(ctx context.Context, command string, start time.Time, resp *protocol.Response, err error) *protocol.Response {
	if err != nil {
		l := m.log(ctx).With("command", command, "code", int(resp.Code), "error", err)
		if resp.Code == domain.KindThingNotFound {
			l.Debug("command failed")
		} else {
			l.Error("command failed")
		}
	}
	m.metrics.ObserveCommand(command, resp.OK, time.Since(start))
	return resp
}

// fail converts err to an ERROR response, using fallback when err has no
// kind of its own.
func fail(err error, fallback domain.ErrorKind) *protocol.Response {
	return protocol.FromError(err, fallback)
}
