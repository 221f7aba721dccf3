// Package cache implements a tiered cache service over two key-value
// backends: a local tier (in-process or a nearby redis) and a remote tier
// (the redis of record). An operating mode selects which tiers serve reads
// and receive writes; a background monitor tracks per-backend health.
package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// Backend is the uniform adapter over one key-value store. Implementations
// do not retry; retry and fallback policy belongs to the Service.
type Backend interface {
	// Get returns the stored value or ErrNotFound. Connection and deadline
	// failures are reported as *BackendError.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePattern removes keys matching a glob pattern, best effort.
	// The returned count is a lower bound.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	// Ping is a lightweight liveness probe reporting observed latency.
	// Used by the health monitor only.
	Ping(ctx context.Context) (time.Duration, error)
	Name() string
	Close() error
}

// HealthStatus is the probed state of one backend.
type HealthStatus int

const (
	StatusUnknown HealthStatus = iota
	StatusHealthy
	StatusUnhealthy
)

func (s HealthStatus) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// HealthState is an immutable snapshot of a backend's probed health.
type HealthState struct {
	Status       HealthStatus
	LastProbe    time.Time
	Latency      time.Duration
	FailureCount int // consecutive failed probes
}

// BackendHandle pairs a backend with its health state. The health pointer has
// a single writer (the health monitor); everything else reads snapshots.
type BackendHandle struct {
	backend Backend
	health  atomic.Pointer[HealthState]
}

func newHandle(b Backend) *BackendHandle {
	h := &BackendHandle{backend: b}
	h.health.Store(&HealthState{Status: StatusUnknown})
	return h
}

func (h *BackendHandle) Name() string { return h.backend.Name() }

// Health returns the latest probe snapshot. Staleness of up to one probe
// interval is acceptable to readers.
func (h *BackendHandle) Health() HealthState { return *h.health.Load() }

// setHealth is called by the health monitor only.
func (h *BackendHandle) setHealth(s HealthState) { h.health.Store(&s) }
