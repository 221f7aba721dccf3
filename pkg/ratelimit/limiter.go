// Package ratelimit throttles pattern invalidations so key-space scans
// cannot be issued faster than the backends can absorb them.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Allow(key string) bool
}

// MemoryLimiter keeps one token bucket per pattern in an expirable LRU so
// abandoned patterns age out instead of leaking.
type MemoryLimiter struct {
	limiters *expirable.LRU[string, *rate.Limiter]
	r        rate.Limit
	b        int
	mu       sync.Mutex
}

func NewMemoryLimiter(perMinute int, size int, ttl time.Duration) *MemoryLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &MemoryLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](size, nil, ttl),
		r:        rate.Every(time.Minute / time.Duration(perMinute)),
		b:        perMinute,
	}
}

func (m *MemoryLimiter) Allow(key string) bool {
	limiter, exists := m.limiters.Get(key)
	if !exists {
		// Concurrent callers could otherwise each create a limiter and both
		// pass; double check under the lock.
		m.mu.Lock()
		limiter, exists = m.limiters.Get(key)
		if !exists {
			limiter = rate.NewLimiter(m.r, m.b)
			m.limiters.Add(key, limiter)
		}
		m.mu.Unlock()
	}
	return limiter.Allow()
}
