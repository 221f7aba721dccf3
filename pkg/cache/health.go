package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashish-tandon/policycache/pkg/metrics"
)

// HealthMonitor probes every backend on a fixed interval from a single
// goroutine. It is the only writer of backend health state. Marking a backend
// unhealthy takes several consecutive failures to avoid flapping; recovery is
// immediate on the first good ping.
type HealthMonitor struct {
	handles      []*BackendHandle
	interval     time.Duration
	probeTimeout time.Duration
	threshold    int

	stop chan struct{}
	done chan struct{}
}

func NewHealthMonitor(handles []*BackendHandle, interval, probeTimeout time.Duration, threshold int) *HealthMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if probeTimeout <= 0 {
		probeTimeout = 500 * time.Millisecond
	}
	if threshold < 1 {
		threshold = 3
	}
	return &HealthMonitor{
		handles:      handles,
		interval:     interval,
		probeTimeout: probeTimeout,
		threshold:    threshold,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the polling loop. An initial sweep runs immediately so
// health leaves "unknown" without waiting a full interval.
func (m *HealthMonitor) Start() {
	go m.run()
}

func (m *HealthMonitor) run() {
	defer close(m.done)
	m.sweep()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *HealthMonitor) sweep() {
	for _, h := range m.handles {
		m.probe(h)
	}
}

func (m *HealthMonitor) probe(h *BackendHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout)
	latency, err := h.backend.Ping(ctx)
	cancel()

	prev := h.Health()
	next := HealthState{LastProbe: time.Now(), Latency: latency}

	if err != nil {
		next.FailureCount = prev.FailureCount + 1
		next.Status = prev.Status
		if next.FailureCount >= m.threshold && prev.Status != StatusUnhealthy {
			next.Status = StatusUnhealthy
			slog.Warn("backend unhealthy",
				"backend", h.Name(),
				"consecutive_failures", next.FailureCount,
				"error", err)
		}
		// Before the threshold an unknown backend stays unknown and a
		// healthy one stays healthy.
	} else {
		next.Status = StatusHealthy
		next.FailureCount = 0
		if prev.Status != StatusHealthy {
			slog.Info("backend healthy", "backend", h.Name(), "latency", latency)
		}
	}

	h.setHealth(next)

	up := 0.0
	if next.Status == StatusHealthy {
		up = 1.0
	}
	metrics.BackendUp.WithLabelValues(h.Name()).Set(up)
	metrics.BackendProbeLatency.WithLabelValues(h.Name()).Set(latency.Seconds())
}

// Stop terminates the loop and waits for it to exit.
func (m *HealthMonitor) Stop() {
	close(m.stop)
	<-m.done
}
