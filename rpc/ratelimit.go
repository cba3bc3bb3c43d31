package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit bounds requests per caller.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

const (
	visitorIdleTTL   = 10 * time.Minute
	visitorPruneSize = 1024
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller key.
type RateLimiter struct {
	limit    RateLimit
	mu       sync.Mutex
	visitors map[string]*visitor
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		visitors: make(map[string]*visitor),
		clockNow: time.Now,
	}
}

// Allow consumes a token for key. A non-positive rate admits everything.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.limit.PerSecond <= 0 {
		return true
	}
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.visitors[key]
	if !ok {
		if len(r.visitors) >= visitorPruneSize {
			r.prune(now)
		}
		burst := r.limit.Burst
		if burst <= 0 {
			burst = 1
		}
		entry = &visitor{limiter: rate.NewLimiter(rate.Limit(r.limit.PerSecond), burst)}
		r.visitors[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (r *RateLimiter) prune(now time.Time) {
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > visitorIdleTTL {
			delete(r.visitors, key)
		}
	}
}
