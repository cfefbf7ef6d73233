package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/thingvault/internal/storage/atrest"
)

// Backend names accepted by Open.
const (
	BackendFS     = "fs"
	BackendSQL    = "sql"
	BackendBadger = "badger"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is "fs", "sql" or "badger".
	Backend string

	FS     FSConfig
	SQL    SQLConfig
	Badger BadgerConfig
}

// Open creates the configured backend. t may be nil for no at-rest
// transform.
func Open(ctx context.Context, cfg Config, t *atrest.Transform, logger *slog.Logger) (Db, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage", "backend", cfg.Backend)

	var (
		db  Db
		err error
	)
	switch cfg.Backend {
	case BackendFS:
		db, err = NewFileSystem(cfg.FS, t, logger)
	case BackendSQL:
		db, err = NewSQL(ctx, cfg.SQL, t, logger)
	case BackendBadger:
		db, err = NewBadger(cfg.Badger, t, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
