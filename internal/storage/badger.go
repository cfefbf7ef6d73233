package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/thingvault/internal/storage/atrest"
)

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string

	// InMemory keeps everything in RAM. Dir is ignored.
	InMemory bool

	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites fsyncs after each write.
	// Default: true
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

const thingKeyPrefix = "t/"

// Key layout: t/<repositoryId>/<storageId>\x00<thingId>. Ids never contain
// NUL, so a storage prefix can't match a sibling storage.
func badgerThingKey(storageKey, thingID string) []byte {
	return []byte(thingKeyPrefix + storageKey + "\x00" + thingID)
}

func badgerScopePrefix(scope string) []byte {
	if strings.Contains(scope, scopeSeparator) {
		return []byte(thingKeyPrefix + scope + "\x00")
	}
	return []byte(thingKeyPrefix + scope + scopeSeparator)
}

func splitBadgerKey(key []byte) (storageKey, thingID string, ok bool) {
	rest, found := strings.CutPrefix(string(key), thingKeyPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, "\x00")
}

// Badger stores things in an embedded Badger database.
type Badger struct {
	db        *badger.DB
	cfg       BadgerConfig
	transform *atrest.Transform
	logger    *slog.Logger
	closed    atomic.Bool

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Db = (*Badger)(nil)

// NewBadger opens a Badger backend and starts its GC loop.
func NewBadger(cfg BadgerConfig, t *atrest.Transform, logger *slog.Logger) (*Badger, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if t == nil {
		t = atrest.Plain()
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultBadgerConfig()
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaults.GCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = defaults.GCThreshold
	}

	opts := badger.DefaultOptions(cfg.Dir).WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts.Dir, opts.ValueDir = "", ""
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &Badger{
		db:        db,
		cfg:       cfg,
		transform: t,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	b.wg.Add(1)
	go b.gcLoop()

	logger.Info("badger backend opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval,
		"transform", t.Name())
	return b, nil
}

func (b *Badger) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (b *Badger) getRecord(ctx context.Context, storageKey, thingID string) (time.Time, []byte, error) {
	if err := ValidateKey(storageKey, thingID); err != nil {
		return time.Time{}, nil, err
	}
	if err := b.check(ctx); err != nil {
		return time.Time{}, nil, err
	}

	var stored []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerThingKey(storageKey, thingID))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return time.Time{}, nil, thingNotFound(storageKey, thingID)
	}
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("badger: get: %w", err)
	}
	return decodeRecord(b.transform, storageKey, thingID, stored)
}

// StoreThing implements Db.
func (b *Badger) StoreThing(ctx context.Context, storageKey, thingID string, data []byte, modifiedOn time.Time) error {
	if err := ValidateKey(storageKey, thingID); err != nil {
		return err
	}
	if err := b.check(ctx); err != nil {
		return err
	}
	record, err := encodeRecord(b.transform, storageKey, thingID, data, modifiedOn)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerThingKey(storageKey, thingID), record)
	})
}

// ThingExists implements Db.
func (b *Badger) ThingExists(ctx context.Context, storageKey, thingID string) (bool, error) {
	if err := ValidateKey(storageKey, thingID); err != nil {
		return false, err
	}
	if err := b.check(ctx); err != nil {
		return false, err
	}
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerThingKey(storageKey, thingID))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("badger: exists: %w", err)
	}
}

// GetThingModifiedOn implements Db.
func (b *Badger) GetThingModifiedOn(ctx context.Context, storageKey, thingID string) (time.Time, error) {
	modifiedOn, _, err := b.getRecord(ctx, storageKey, thingID)
	return modifiedOn, err
}

// GetThingCopy implements Db.
func (b *Badger) GetThingCopy(ctx context.Context, storageKey, thingID string) ([]byte, error) {
	_, data, err := b.getRecord(ctx, storageKey, thingID)
	return data, err
}

// DiscardThing implements Db.
func (b *Badger) DiscardThing(ctx context.Context, storageKey, thingID string) error {
	if err := ValidateKey(storageKey, thingID); err != nil {
		return err
	}
	if err := b.check(ctx); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerThingKey(storageKey, thingID))
	})
}

// scan calls fn for each key under scope.
func (b *Badger) scan(ctx context.Context, scope string, fn func(storageKey, thingID string)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Only need keys
		opts.Prefix = badgerScopePrefix(scope)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if storageKey, thingID, ok := splitBadgerKey(it.Item().Key()); ok {
				fn(storageKey, thingID)
			}
		}
		return nil
	})
}

// FindThingIDs implements Db.
func (b *Badger) FindThingIDs(ctx context.Context, storageKey, pattern string) ([]IDInDb, error) {
	if err := ValidateStorageKey(storageKey); err != nil {
		return nil, err
	}
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	c := newCollector(false)
	err = b.scan(ctx, storageKey, func(key, id string) {
		if m.Match(id) {
			c.addThing(key, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return c.result(), nil
}

// DiscardAll implements Db.
func (b *Badger) DiscardAll(ctx context.Context, scope string) error {
	if _, _, err := SplitScope(scope); err != nil {
		return err
	}
	if err := b.check(ctx); err != nil {
		return err
	}
	if err := b.db.DropPrefix(badgerScopePrefix(scope)); err != nil {
		return fmt.Errorf("badger: discard all: %w", err)
	}
	return nil
}

// FindIDs implements Db.
func (b *Badger) FindIDs(ctx context.Context, scope, pattern string) ([]IDInDb, error) {
	if _, _, err := SplitScope(scope); err != nil {
		return nil, err
	}
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	c := newCollector(true)
	err = b.scan(ctx, scope, func(key, id string) {
		if m.Match(id) {
			c.addThing(key, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return c.result(), nil
}

// GC runs value log garbage collection until nothing more is rewritten.
// Returns the number of value log files rewritten.
func (b *Badger) GC(ctx context.Context) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	startTime := time.Now()

	rewritten := 0
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return rewritten, fmt.Errorf("gc: %w", err)
		}
		rewritten++
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcRuns.Add(1)
	if b.metricsGCRuns != nil {
		b.metricsGCRuns.Inc()
	}

	b.logger.Debug("badger gc completed",
		"files_rewritten", rewritten,
		"elapsed", time.Since(startTime))
	return rewritten, nil
}

// BadgerStats is a point-in-time view of the database size.
type BadgerStats struct {
	LSMSize      int64
	ValueLogSize int64
	LastGCTime   int64 // Unix milliseconds, 0 if never
	GCRuns       uint64
}

// Stats returns storage statistics.
func (b *Badger) Stats() BadgerStats {
	lsm, vlog := b.db.Size()
	return BadgerStats{
		LSMSize:      lsm,
		ValueLogSize: vlog,
		LastGCTime:   b.lastGCTime.Load(),
		GCRuns:       b.gcRuns.Load(),
	}
}

// RegisterMetrics registers Badger metrics with reg. Call once, before
// serving traffic.
func (b *Badger) RegisterMetrics(reg prometheus.Registerer) *Badger {
	b.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "thingvault",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	b.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "thingvault",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	b.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "thingvault",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	b.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "thingvault",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Number of Badger value log GC runs",
	})

	reg.MustRegister(
		b.metricsLSMSize,
		b.metricsValueLogSize,
		b.metricsLastGCTime,
		b.metricsGCRuns,
	)

	b.wg.Add(1)
	go b.metricsUpdateLoop()
	return b
}

func (b *Badger) updateMetrics() {
	stats := b.Stats()
	b.metricsLSMSize.Set(float64(stats.LSMSize))
	b.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	if stats.LastGCTime > 0 {
		b.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0)
	}
}

func (b *Badger) metricsUpdateLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	b.updateMetrics()
	for {
		select {
		case <-ticker.C:
			b.updateMetrics()
		case <-b.stopCh:
			return
		}
	}
}

// gcLoop runs periodic garbage collection.
func (b *Badger) gcLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-b.stopCh:
			return
		}
	}
}

// Close stops background work and closes the database.
func (b *Badger) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		b.wg.Wait()

		if cerr := b.db.Close(); cerr != nil {
			err = fmt.Errorf("close db: %w", cerr)
			return
		}
		b.logger.Info("badger backend closed")
	})
	return err
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
