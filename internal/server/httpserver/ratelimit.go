package httpserver

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/thingvault/pkg/cmap"
)

// DefaultLimiterIdle is how long a client limiter survives without
// traffic before it is swept.
const DefaultLimiterIdle = 5 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiterRegistry holds one token bucket per client key.
type RateLimiterRegistry struct {
	limiters  *cmap.Map[string, *clientLimiter]
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	lastSweep atomic.Int64
}

// NewRateLimiterRegistry creates a registry that grants each client
// perSecond requests per second with the given burst. A non-positive
// perSecond disables limiting.
func NewRateLimiterRegistry(perSecond float64, burst int) *RateLimiterRegistry {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	r := &RateLimiterRegistry{
		limiters: cmap.New[string, *clientLimiter](),
		limit:    limit,
		burst:    burst,
		idle:     DefaultLimiterIdle,
		now:      time.Now,
	}
	r.lastSweep.Store(r.now().UnixNano())
	return r
}

// Allow reports whether a request from key may proceed.
func (r *RateLimiterRegistry) Allow(key string) bool {
	if r.limit == rate.Inf {
		return true
	}
	now := r.now()
	r.maybeSweep(now)

	cl, _, _ := r.limiters.GetOrCreate(key, func() (*clientLimiter, error) {
		return &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}, nil
	})
	cl.lastSeen.Store(now.UnixNano())
	return cl.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (r *RateLimiterRegistry) Len() int {
	return r.limiters.Count()
}

// maybeSweep drops idle limiters at most once per idle period.
func (r *RateLimiterRegistry) maybeSweep(now time.Time) {
	last := r.lastSweep.Load()
	if now.UnixNano()-last < int64(r.idle) {
		return
	}
	if !r.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-r.idle).UnixNano()
	for _, key := range r.limiters.Keys() {
		r.limiters.DeleteIf(key, func(cl *clientLimiter) bool {
			return cl.lastSeen.Load() < cutoff
		})
	}
}
