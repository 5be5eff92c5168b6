package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNoLimiter(t *testing.T) {
	l := &NoLimiter{}
	for i := 0; i < 10000; i++ {
		allowed, err := l.Allow("")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLocalRateLimiter(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(2), 0).(*localRateLimiter)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("203.0.113.7")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := l.Allow("203.0.113.7")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Ensure key partitioning is valid
	for i := 0; i < 2; i++ {
		allowed, err := l.Allow("198.51.100.4")
		assert.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err = l.Allow("198.51.100.4")
	assert.NoError(t, err)
	assert.False(t, allowed)

	// Tokens refill over time
	now = now.Add(time.Second)
	allowed, err = l.Allow("203.0.113.7")
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocalRateLimiter_Burst(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(1), 5).(*localRateLimiter)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("a")
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("a")
	assert.False(t, allowed)
}

func TestLocalRateLimiter_FractionalLimit(t *testing.T) {
	l := NewLocalRateLimiter(rate.Limit(0.5), 0).(*localRateLimiter)
	assert.Equal(t, 1, l.burst)

	allowed, _ := l.Allow("a")
	assert.True(t, allowed)
	allowed, _ = l.Allow("a")
	assert.False(t, allowed)
}

func TestLocalRateLimiter_EvictsIdleKeys(t *testing.T) {
	now := time.Now()
	l := NewLocalRateLimiter(rate.Limit(1), 1).(*localRateLimiter)
	l.now = func() time.Time { return now }

	l.Allow("idle")
	now = now.Add(2 * idleKeyTimeout)
	l.Allow("active")

	l.Lock()
	l.evictIdle(now)
	_, idleTracked := l.limiters["idle"]
	_, activeTracked := l.limiters["active"]
	l.Unlock()

	assert.False(t, idleTracked)
	assert.True(t, activeTracked)
}
