package domain

import (
	"sync/atomic"
	"time"
)

// accessClock tracks the last time an entity was used.
type accessClock struct {
	accessedOn atomic.Int64 // UnixNano
}

// Touch advances the last-access time to now. It never moves backwards,
// so a late writer with an older clock reading cannot revive an entity's
// age.
func (c *accessClock) Touch(now time.Time) {
	n := now.UnixNano()
	for {
		cur := c.accessedOn.Load()
		if n <= cur || c.accessedOn.CompareAndSwap(cur, n) {
			return
		}
	}
}

// AccessedOn returns the last-access time.
func (c *accessClock) AccessedOn() time.Time {
	return time.Unix(0, c.accessedOn.Load())
}

// IdleLongerThan reports whether the entity has not been used for more
// than ttl as of now.
func (c *accessClock) IdleLongerThan(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.AccessedOn()) > ttl
}
