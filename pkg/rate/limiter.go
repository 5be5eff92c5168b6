package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Keys idle for longer than this are dropped when the limiter grows past
	// maxTrackedKeys
	idleKeyTimeout = 10 * time.Minute
	maxTrackedKeys = 100_000
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localRateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	sync.Mutex
	limiters map[string]*keyedLimiter
}

// NewLocalRateLimiter returns an in memory limiter allowing limit operations
// per second per key, with bursts of up to burst operations. A burst below
// one defaults to the limit rounded up.
func NewLocalRateLimiter(limit rate.Limit, burst int) Limiter {
	if burst < 1 {
		burst = int(limit)
		if float64(burst) < float64(limit) {
			burst++
		}
		if burst < 1 {
			burst = 1
		}
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*keyedLimiter),
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	now := l.now()

	l.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxTrackedKeys {
			l.evictIdle(now)
		}

		entry = &keyedLimiter{
			limiter: rate.NewLimiter(l.limit, l.burst),
		}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.Unlock()

	return entry.limiter.AllowN(now, 1), nil
}

func (l *localRateLimiter) evictIdle(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > idleKeyTimeout {
			delete(l.limiters, key)
		}
	}
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(key string) (bool, error) {
	return true, nil
}
