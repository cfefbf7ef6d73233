package storage

import (
	"context"

	"github.com/yndnr/thingvault/pkg/cmap"
)

// pathLock is a cancellable mutex shared by every caller working on one
// path.
type pathLock struct {
	sem  chan struct{}
	refs int // guarded by the owning shard of pathLocks.m
}

// pathLocks hands out one lock per path. Entries are created on first use
// and dropped when the last holder releases.
type pathLocks struct {
	m *cmap.Map[string, *pathLock]
}

func newPathLocks() *pathLocks {
	return &pathLocks{m: cmap.New[string, *pathLock]()}
}

// acquire blocks until path is free or ctx is done.
func (p *pathLocks) acquire(ctx context.Context, path string) (func(), error) {
	l, _ := p.m.Compute(path, func(cur *pathLock, exists bool) (*pathLock, bool) {
		if !exists {
			cur = &pathLock{sem: make(chan struct{}, 1)}
		}
		cur.refs++
		return cur, true
	})

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		p.unref(path)
		return nil, ctx.Err()
	}

	return func() {
		<-l.sem
		p.unref(path)
	}, nil
}

func (p *pathLocks) unref(path string) {
	p.m.Compute(path, func(cur *pathLock, exists bool) (*pathLock, bool) {
		if !exists {
			return nil, false
		}
		cur.refs--
		return cur, cur.refs > 0
	})
}

// size returns the number of live entries.
func (p *pathLocks) size() int {
	return p.m.Count()
}
