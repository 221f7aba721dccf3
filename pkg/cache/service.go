package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ashish-tandon/policycache/pkg/metrics"
	"github.com/ashish-tandon/policycache/pkg/ratelimit"
)

const tracerName = "policycache/cache"

// A fallback hit cannot recover the entry's original TTL, so repopulated
// copies get a short fixed one and age out quickly.
const repopulateTTL = 5 * time.Minute

// Options configures a Service. Local and Remote may each be nil as long as
// the chosen mode can be satisfied by the remaining backend.
type Options struct {
	Local  Backend
	Remote Backend
	Mode   Mode

	// Repopulate writes a value back into earlier read-plan backends after a
	// fallback hit. Off by default.
	Repopulate bool

	HealthInterval time.Duration // probe interval, default 10s
	ProbeTimeout   time.Duration // per-probe deadline, default 500ms
	UnhealthyAfter int           // consecutive failures before unhealthy, default 3

	// CompressThreshold enables brotli compression of values at or above
	// this many bytes. Zero disables compression.
	CompressThreshold int

	// InvalidateLimiter throttles InvalidatePattern per pattern. Nil
	// disables throttling.
	InvalidateLimiter ratelimit.Limiter
}

// Service is the tiered cache. All methods are safe for concurrent use.
type Service struct {
	modes   *ModeController
	monitor *HealthMonitor
	stats   *Stats
	codec   codec

	repopulate bool
	repopGroup singleflight.Group
	limiter    ratelimit.Limiter

	backends []Backend
}

// NewService wires the backends into a service and starts the health
// monitor. The caller owns the returned instance and must Close it.
func NewService(opts Options) (*Service, error) {
	var localH, remoteH *BackendHandle
	var backends []Backend
	if opts.Local != nil {
		localH = newHandle(opts.Local)
		backends = append(backends, opts.Local)
	}
	if opts.Remote != nil {
		remoteH = newHandle(opts.Remote)
		backends = append(backends, opts.Remote)
	}

	modes, err := NewModeController(localH, remoteH, opts.Mode)
	if err != nil {
		return nil, err
	}

	handles := modes.Handles()
	names := make([]string, 0, len(handles))
	for _, h := range handles {
		names = append(names, h.Name())
	}

	s := &Service{
		modes:      modes,
		stats:      newStats(names),
		codec:      codec{threshold: opts.CompressThreshold},
		repopulate: opts.Repopulate,
		limiter:    opts.InvalidateLimiter,
		backends:   backends,
	}
	s.publishMode(opts.Mode)

	s.monitor = NewHealthMonitor(handles, opts.HealthInterval, opts.ProbeTimeout, opts.UnhealthyAfter)
	s.monitor.Start()
	return s, nil
}

// Get executes the read plan in order and returns the first hit. Backend
// failures are recorded and skipped; if every backend misses or fails the
// result is ErrNotFound, never a backend error.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()
	defer func() {
		metrics.OpDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	s.stats.gets.Add(1)
	p := s.modes.Plan()
	for i, h := range p.read {
		opStart := time.Now()
		stored, err := h.backend.Get(ctx, key)
		s.stats.recordLatency(h.Name(), time.Since(opStart).Seconds()*1000)

		if err == nil {
			value, derr := s.codec.decode(stored)
			if derr != nil {
				slog.Error("dropping undecodable cache entry", "backend", h.Name(), "key", key, "error", derr)
				continue
			}
			s.stats.hits.Add(1)
			metrics.CacheOpsTotal.WithLabelValues("get", "hit").Inc()
			span.SetAttributes(
				attribute.String("cache.backend", h.Name()),
				attribute.Bool("cache.hit", true),
			)
			if i > 0 && s.repopulate {
				s.repopulateEarlier(p.read[:i], key, stored)
			}
			return value, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		s.recordBackendError(h.Name(), err)
		slog.Warn("cache read failed, falling through", "backend", h.Name(), "key", key, "error", err)
	}

	s.stats.misses.Add(1)
	metrics.CacheOpsTotal.WithLabelValues("get", "miss").Inc()
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return nil, ErrNotFound
}

// repopulateEarlier writes a fallback hit back into the backends that missed
// it. Runs detached from the request; concurrent repopulations of the same
// key are collapsed.
func (s *Service) repopulateEarlier(targets []*BackendHandle, key string, stored []byte) {
	go func() {
		s.repopGroup.Do(key, func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for _, h := range targets {
				if err := h.backend.Set(ctx, key, stored, repopulateTTL); err != nil {
					slog.Debug("repopulate failed", "backend", h.Name(), "key", key, "error", err)
				}
			}
			return nil, nil
		})
	}()
}

// Set executes the write plan. In dual mode both writes run in parallel and
// partial failure still succeeds; only a write rejected by every backend
// returns ErrAllBackendsUnavailable.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Set",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()
	defer func() {
		metrics.OpDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}()

	s.stats.sets.Add(1)
	stored := s.codec.encode(value)
	p := s.modes.Plan()

	errs := make([]error, len(p.write))
	var g errgroup.Group
	for i, h := range p.write {
		i, h := i, h
		g.Go(func() error {
			opStart := time.Now()
			errs[i] = h.backend.Set(ctx, key, stored, ttl)
			s.stats.recordLatency(h.Name(), time.Since(opStart).Seconds()*1000)
			return nil
		})
	}
	g.Wait()

	accepted := 0
	for i, h := range p.write {
		if errs[i] == nil {
			accepted++
			continue
		}
		s.recordBackendError(h.Name(), errs[i])
		// The remote side is the primary of record in dual mode; losing its
		// write is more serious than losing the local copy.
		if p.mode == ModeDual && i == 0 {
			slog.Error("write to primary backend failed", "backend", h.Name(), "key", key, "error", errs[i])
		} else {
			slog.Warn("write to backend failed", "backend", h.Name(), "key", key, "error", errs[i])
		}
	}

	if accepted == 0 {
		metrics.CacheOpsTotal.WithLabelValues("set", "error").Inc()
		return ErrAllBackendsUnavailable
	}
	metrics.CacheOpsTotal.WithLabelValues("set", "ok").Inc()
	return nil
}

// Delete removes the key from every backend in the write plan, never
// short-circuiting, so a later mode switch cannot resurrect a stale copy.
// Backend failures are recorded, not returned.
func (s *Service) Delete(ctx context.Context, key string) error {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.Delete",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()
	defer func() {
		metrics.OpDuration.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	}()

	s.stats.deletes.Add(1)
	p := s.modes.Plan()

	var g errgroup.Group
	for _, h := range p.write {
		h := h
		g.Go(func() error {
			if err := h.backend.Delete(ctx, key); err != nil {
				s.recordBackendError(h.Name(), err)
				slog.Warn("delete failed", "backend", h.Name(), "key", key, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	metrics.CacheOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// InvalidatePattern deletes keys matching a glob pattern on every write-plan
// backend. Best effort and not transactional; the count is a lower bound.
func (s *Service) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cache.InvalidatePattern",
		trace.WithAttributes(attribute.String("cache.pattern", pattern)))
	defer span.End()
	defer func() {
		metrics.OpDuration.WithLabelValues("invalidate").Observe(time.Since(start).Seconds())
	}()

	if s.limiter != nil && !s.limiter.Allow(pattern) {
		metrics.CacheOpsTotal.WithLabelValues("invalidate", "throttled").Inc()
		return 0, ErrThrottled
	}

	s.stats.invalidations.Add(1)
	p := s.modes.Plan()
	total := 0
	for _, h := range p.write {
		n, err := h.backend.DeletePattern(ctx, pattern)
		total += n
		if err != nil {
			s.recordBackendError(h.Name(), err)
			slog.Warn("pattern invalidation incomplete", "backend", h.Name(), "pattern", pattern, "deleted", n, "error", err)
		}
	}
	metrics.CacheOpsTotal.WithLabelValues("invalidate", "ok").Inc()
	return total, nil
}

// Stats returns a lock-free snapshot of the counters.
func (s *Service) Stats() Snapshot { return s.stats.Snapshot() }

// ResetStats zeroes the counters. Admin action only.
func (s *Service) ResetStats() { s.stats.Reset() }

// BackendStatus describes one backend for the status endpoint.
type BackendStatus struct {
	Name         string    `json:"name"`
	Health       string    `json:"health"`
	LastProbe    time.Time `json:"last_probe"`
	FailureCount int       `json:"consecutive_failures"`
	LatencyMS    float64   `json:"latency_ms"`
}

// Status reports the active mode and per-backend health.
type Status struct {
	Mode     string          `json:"mode"`
	Backends []BackendStatus `json:"backends"`
}

func (s *Service) Status() Status {
	st := Status{Mode: s.modes.Mode().String()}
	for _, h := range s.modes.Handles() {
		health := h.Health()
		st.Backends = append(st.Backends, BackendStatus{
			Name:         h.Name(),
			Health:       health.Status.String(),
			LastProbe:    health.LastProbe,
			FailureCount: health.FailureCount,
			LatencyMS:    float64(health.Latency.Microseconds()) / 1000.0,
		})
	}
	return st
}

// Mode returns the active operating mode.
func (s *Service) Mode() Mode { return s.modes.Mode() }

// SetMode switches the operating mode. The swap is atomic; in-flight
// operations finish on the plan they started with.
func (s *Service) SetMode(mode Mode) error {
	if err := s.modes.SetMode(mode); err != nil {
		return err
	}
	s.publishMode(mode)
	return nil
}

func (s *Service) publishMode(mode Mode) {
	for _, m := range []Mode{ModeLocal, ModeDual, ModeRemote} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		metrics.ModeInfo.WithLabelValues(m.String()).Set(v)
	}
}

func (s *Service) recordBackendError(name string, err error) {
	s.stats.recordError(name)
	kind := FailureUnavailable
	var berr *BackendError
	if errors.As(err, &berr) {
		kind = berr.Kind
	}
	metrics.BackendErrorsTotal.WithLabelValues(name, kind.String()).Inc()
}

// Close stops the health monitor and closes every backend.
func (s *Service) Close() error {
	s.monitor.Stop()
	var first error
	for _, b := range s.backends {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
