package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yndnr/thingvault/internal/storage/atrest"
)

// Temp files carry a space, which url.PathEscape never leaves in a name,
// so they can't collide with thing files.
const tempPattern = " tmp-*"

// FSConfig configures the filesystem backend.
type FSConfig struct {
	// Root is the base directory. Created on open.
	Root string
}

// FileSystem stores each thing as a file:
//
//	<root>/<repositoryId>/<storageId>/<escaped thingId>
//
// Every operation on a thing holds that thing's path lock.
type FileSystem struct {
	root      string
	transform *atrest.Transform
	locks     *pathLocks
	logger    *slog.Logger
	closed    atomic.Bool
}

var _ Db = (*FileSystem)(nil)

// NewFileSystem opens a filesystem backend rooted at cfg.Root.
func NewFileSystem(cfg FSConfig, t *atrest.Transform, logger *slog.Logger) (*FileSystem, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("fs: root is required")
	}
	if t == nil {
		t = atrest.Plain()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("fs: create root: %w", err)
	}
	logger.Info("filesystem backend opened", "root", cfg.Root, "transform", t.Name())
	return &FileSystem{
		root:      cfg.Root,
		transform: t,
		locks:     newPathLocks(),
		logger:    logger,
	}, nil
}

func (f *FileSystem) scopeDir(scope string) (string, error) {
	repositoryID, storageID, err := SplitScope(scope)
	if err != nil {
		return "", err
	}
	if storageID == "" {
		return filepath.Join(f.root, escape(repositoryID)), nil
	}
	return filepath.Join(f.root, escape(repositoryID), escape(storageID)), nil
}

func (f *FileSystem) thingPath(storageKey, thingID string) (string, error) {
	if err := ValidateKey(storageKey, thingID); err != nil {
		return "", err
	}
	dir, err := f.scopeDir(storageKey)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, escape(thingID)), nil
}

// inLock resolves the thing's path and runs fn while holding its lock.
func (f *FileSystem) inLock(ctx context.Context, storageKey, thingID string, fn func(path string) error) error {
	if f.closed.Load() {
		return ErrClosed
	}
	path, err := f.thingPath(storageKey, thingID)
	if err != nil {
		return err
	}
	release, err := f.locks.acquire(ctx, path)
	if err != nil {
		return err
	}
	defer release()
	return fn(path)
}

func (f *FileSystem) read(storageKey, thingID, path string) (time.Time, []byte, error) {
	stored, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil, thingNotFound(storageKey, thingID)
		}
		return time.Time{}, nil, err
	}
	return decodeRecord(f.transform, storageKey, thingID, stored)
}

// StoreThing implements Db.
func (f *FileSystem) StoreThing(ctx context.Context, storageKey, thingID string, data []byte, modifiedOn time.Time) error {
	return f.inLock(ctx, storageKey, thingID, func(path string) error {
		record, err := encodeRecord(f.transform, storageKey, thingID, data, modifiedOn)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
		if err := writeAtomic(dir, path, record); err != nil {
			return err
		}
		if !fitsFileTime(modifiedOn) {
			return nil
		}
		return os.Chtimes(path, modifiedOn, modifiedOn)
	})
}

// fitsFileTime reports whether t survives the nanosecond timestamps of
// os.Chtimes. The record header holds the time either way.
func fitsFileTime(t time.Time) bool {
	return time.Unix(0, t.UnixNano()).Equal(t)
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// ThingExists implements Db.
func (f *FileSystem) ThingExists(ctx context.Context, storageKey, thingID string) (bool, error) {
	var exists bool
	err := f.inLock(ctx, storageKey, thingID, func(path string) error {
		info, err := os.Stat(path)
		switch {
		case err == nil:
			exists = info.Mode().IsRegular()
			return nil
		case errors.Is(err, fs.ErrNotExist):
			return nil
		default:
			return err
		}
	})
	return exists, err
}

// GetThingModifiedOn implements Db.
func (f *FileSystem) GetThingModifiedOn(ctx context.Context, storageKey, thingID string) (time.Time, error) {
	var modifiedOn time.Time
	err := f.inLock(ctx, storageKey, thingID, func(path string) error {
		var err error
		modifiedOn, _, err = f.read(storageKey, thingID, path)
		return err
	})
	return modifiedOn, err
}

// GetThingCopy implements Db.
func (f *FileSystem) GetThingCopy(ctx context.Context, storageKey, thingID string) ([]byte, error) {
	var data []byte
	err := f.inLock(ctx, storageKey, thingID, func(path string) error {
		var err error
		_, data, err = f.read(storageKey, thingID, path)
		return err
	})
	return data, err
}

// DiscardThing implements Db.
func (f *FileSystem) DiscardThing(ctx context.Context, storageKey, thingID string) error {
	return f.inLock(ctx, storageKey, thingID, func(path string) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	})
}

// listThings reports every thing file in dir whose id matches m.
func listThings(dir string, m matcher, fn func(thingID string)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.Contains(name, " ") {
			continue
		}
		thingID, err := url.PathUnescape(name)
		if err != nil {
			continue
		}
		if m.Match(thingID) {
			fn(thingID)
		}
	}
	return nil
}

// FindThingIDs implements Db.
func (f *FileSystem) FindThingIDs(ctx context.Context, storageKey, pattern string) ([]IDInDb, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	if err := ValidateStorageKey(storageKey); err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	dir, _ := f.scopeDir(storageKey)

	c := newCollector(false)
	if err := listThings(dir, m, func(id string) { c.addThing(storageKey, id) }); err != nil {
		return nil, err
	}
	return c.result(), ctx.Err()
}

// DiscardAll implements Db.
func (f *FileSystem) DiscardAll(ctx context.Context, scope string) error {
	if f.closed.Load() {
		return ErrClosed
	}
	dir, err := f.scopeDir(scope)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// FindIDs implements Db.
func (f *FileSystem) FindIDs(ctx context.Context, scope, pattern string) ([]IDInDb, error) {
	if f.closed.Load() {
		return nil, ErrClosed
	}
	repositoryID, storageID, err := SplitScope(scope)
	if err != nil {
		return nil, err
	}
	m, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}

	c := newCollector(true)
	if storageID != "" {
		dir, _ := f.scopeDir(scope)
		err := listThings(dir, m, func(id string) { c.addThing(scope, id) })
		return c.result(), err
	}

	repoDir, _ := f.scopeDir(repositoryID)
	entries, err := os.ReadDir(repoDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sid, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := ScopeKey(repositoryID, sid)
		if err := listThings(filepath.Join(repoDir, e.Name()), m, func(id string) { c.addThing(key, id) }); err != nil {
			return nil, err
		}
	}
	return c.result(), nil
}

// Close implements Db.
func (f *FileSystem) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	f.logger.Info("filesystem backend closed", "root", f.root)
	return nil
}
