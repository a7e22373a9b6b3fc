// Package ratelimit keeps one token bucket per client key (usually the
// remote IP). The same Limiter is shared by every transport that accepts
// bids so a client gets one budget whichever way it connects.
package ratelimit

import (
	"sync"

	"github.com/cristianortiz/carauction/internal/shared/config"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; past it the table is reset.
const maxTrackedClients = 10000

type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// New returns nil when limiting is disabled. A nil Limiter allows everything.
func New(cfg config.RateLimitConfig) *Limiter {
	if !cfg.Enabled {
		return nil
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
	}
}

// Allow spends one token from key's bucket and reports whether there was one.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	b, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.limiters = make(map[string]*rate.Limiter)
		}
		b = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
