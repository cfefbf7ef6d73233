package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/yndnr/thingvault/internal/storage/atrest"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// SQLConfig configures the relational backend.
type SQLConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string

	// DSN is a file path (sqlite) or a connection string (pgx).
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type dialect struct {
	name     string
	blobType string
	numbered bool // $1, $2 placeholders
}

var dialects = map[string]dialect{
	DriverSQLite:   {name: DriverSQLite, blobType: "BLOB"},
	DriverPostgres: {name: DriverPostgres, blobType: "BYTEA", numbered: true},
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS things (
			storage_key TEXT NOT NULL,
			thing_id TEXT NOT NULL,
			data ` + d.blobType + ` NOT NULL,
			modified_on BIGINT NOT NULL, -- Unix microseconds
			PRIMARY KEY (storage_key, thing_id)
		)`,
	}
}

const (
	upsertThingSQL = `INSERT INTO things (storage_key, thing_id, data, modified_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (storage_key, thing_id)
		DO UPDATE SET data = excluded.data, modified_on = excluded.modified_on`
	thingExistsSQL     = `SELECT 1 FROM things WHERE storage_key = ? AND thing_id = ?`
	thingModifiedOnSQL = `SELECT modified_on FROM things WHERE storage_key = ? AND thing_id = ?`
	thingDataSQL       = `SELECT data FROM things WHERE storage_key = ? AND thing_id = ?`
	deleteThingSQL     = `DELETE FROM things WHERE storage_key = ? AND thing_id = ?`
	listThingsSQL      = `SELECT thing_id FROM things WHERE storage_key = ?`
	// Prefix match without LIKE, so '%' and '_' in ids stay literal.
	scopeWhere     = ` WHERE storage_key = ? OR substr(storage_key, 1, ?) = ?`
	listScopeSQL   = `SELECT storage_key, thing_id FROM things` + scopeWhere
	deleteScopeSQL = `DELETE FROM things` + scopeWhere
)

// SQL stores things as rows of a single table keyed by
// (storage_key, thing_id). The data column holds the encoded record.
type SQL struct {
	db        *sql.DB
	dialect   dialect
	transform *atrest.Transform
	logger    *slog.Logger
	closed    atomic.Bool
}

var _ Db = (*SQL)(nil)

// sqliteDSN turns a bare path into a DSN with the pragmas the backend
// relies on. DSNs that already carry parameters are left alone.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

// NewSQL opens the database and creates the schema if needed.
func NewSQL(ctx context.Context, cfg SQLConfig, t *atrest.Transform, logger *slog.Logger) (*SQL, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("sql: unsupported driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sql: dsn is required")
	}
	if t == nil {
		t = atrest.Plain()
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := cfg.DSN
	maxOpen := cfg.MaxOpenConns
	if d.name == DriverSQLite {
		dsn = sqliteDSN(dsn)
		// One writer at a time; also keeps ":memory:" a single database.
		if maxOpen == 0 {
			maxOpen = 1
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sql: ping: %w", err)
	}
	for _, stmt := range d.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sql: create schema: %w", err)
		}
	}

	logger.Info("sql backend opened", "driver", cfg.Driver, "transform", t.Name())
	return &SQL{db: db, dialect: d, transform: t, logger: logger}, nil
}

func (s *SQL) check(storageKey, thingID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return ValidateKey(storageKey, thingID)
}

// StoreThing implements Db.
func (s *SQL) StoreThing(ctx context.Context, storageKey, thingID string, data []byte, modifiedOn time.Time) error {
	if err := s.check(storageKey, thingID); err != nil {
		return err
	}
	record, err := encodeRecord(s.transform, storageKey, thingID, data, modifiedOn)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.dialect.rebind(upsertThingSQL),
		storageKey, thingID, record, modifiedOn.UnixMicro())
	if err != nil {
		return fmt.Errorf("sql: store thing: %w", err)
	}
	return nil
}

// ThingExists implements Db.
func (s *SQL) ThingExists(ctx context.Context, storageKey, thingID string) (bool, error) {
	if err := s.check(storageKey, thingID); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(thingExistsSQL), storageKey, thingID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("sql: thing exists: %w", err)
	}
	return true, nil
}

// GetThingModifiedOn implements Db.
func (s *SQL) GetThingModifiedOn(ctx context.Context, storageKey, thingID string) (time.Time, error) {
	if err := s.check(storageKey, thingID); err != nil {
		return time.Time{}, err
	}
	var micros int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(thingModifiedOnSQL), storageKey, thingID).Scan(&micros)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, thingNotFound(storageKey, thingID)
	case err != nil:
		return time.Time{}, fmt.Errorf("sql: get modified on: %w", err)
	}
	return time.UnixMicro(micros).UTC(), nil
}

// GetThingCopy implements Db.
func (s *SQL) GetThingCopy(ctx context.Context, storageKey, thingID string) ([]byte, error) {
	if err := s.check(storageKey, thingID); err != nil {
		return nil, err
	}
	var stored []byte
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(thingDataSQL), storageKey, thingID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, thingNotFound(storageKey, thingID)
	case err != nil:
		return nil, fmt.Errorf("sql: get thing: %w", err)
	}
	_, data, err := decodeRecord(s.transform, storageKey, thingID, stored)
	return data, err
}

// DiscardThing implements Db.
func (s *SQL) DiscardThing(ctx context.Context, storageKey, thingID string) error {
	if err := s.check(storageKey, thingID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(deleteThingSQL), storageKey, thingID); err != nil {
		return fmt.Errorf("sql: discard thing: %w", err)
	}
	return nil
}

// FindThingIDs implements Db.
func (s *SQL) FindThingIDs(ctx context.Context, storageKey, pattern string) ([]IDInDb, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateStorageKey(storageKey); err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(listThingsSQL), storageKey)
	if err != nil {
		return nil, fmt.Errorf("sql: find thing ids: %w", err)
	}
	defer rows.Close()

	c := newCollector(false)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sql: scan thing id: %w", err)
		}
		if m.Match(id) {
			c.addThing(storageKey, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql: find thing ids: %w", err)
	}
	return c.result(), nil
}

func scopeArgs(scope string) []any {
	prefix := scope + scopeSeparator
	// substr counts characters, not bytes.
	return []any{scope, utf8.RuneCountInString(prefix), prefix}
}

// DiscardAll implements Db.
func (s *SQL) DiscardAll(ctx context.Context, scope string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if _, _, err := SplitScope(scope); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(deleteScopeSQL), scopeArgs(scope)...); err != nil {
		return fmt.Errorf("sql: discard all: %w", err)
	}
	return nil
}

// FindIDs implements Db.
func (s *SQL) FindIDs(ctx context.Context, scope, pattern string) ([]IDInDb, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if _, _, err := SplitScope(scope); err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(listScopeSQL), scopeArgs(scope)...)
	if err != nil {
		return nil, fmt.Errorf("sql: find ids: %w", err)
	}
	defer rows.Close()

	c := newCollector(true)
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("sql: scan id: %w", err)
		}
		if inScope(key, scope) && m.Match(id) {
			c.addThing(key, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql: find ids: %w", err)
	}
	return c.result(), nil
}

// Close implements Db.
func (s *SQL) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Info("sql backend closed", "driver", s.dialect.name)
	return s.db.Close()
}
