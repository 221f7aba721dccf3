package cache

import (
	"testing"
	"time"
)

func TestHealthMonitor_SlowDownFastUp(t *testing.T) {
	fb := newFakeBackend("remote")
	h := newHandle(fb)
	m := NewHealthMonitor([]*BackendHandle{h}, time.Hour, 100*time.Millisecond, 3)

	if h.Health().Status != StatusUnknown {
		t.Fatalf("Expected initial status unknown, got %v", h.Health().Status)
	}

	// First successful probe: unknown -> healthy.
	m.probe(h)
	if got := h.Health(); got.Status != StatusHealthy || got.FailureCount != 0 {
		t.Errorf("Expected healthy after first good ping, got %+v", got)
	}

	fb.setFailing(true)

	// Two failures are not enough to mark it down.
	m.probe(h)
	m.probe(h)
	if got := h.Health(); got.Status != StatusHealthy {
		t.Errorf("Expected still healthy after 2 failures, got %v", got.Status)
	}
	if got := h.Health(); got.FailureCount != 2 {
		t.Errorf("Expected failure count 2, got %d", got.FailureCount)
	}

	// Third consecutive failure crosses the threshold.
	m.probe(h)
	if got := h.Health(); got.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy after 3 failures, got %v", got.Status)
	}

	// Recovery is immediate on the next good ping, no hysteresis.
	fb.setFailing(false)
	m.probe(h)
	if got := h.Health(); got.Status != StatusHealthy || got.FailureCount != 0 {
		t.Errorf("Expected healthy after recovery ping, got %+v", got)
	}
}

func TestHealthMonitor_UnknownToUnhealthy(t *testing.T) {
	fb := newFakeBackend("remote")
	fb.setFailing(true)
	h := newHandle(fb)
	m := NewHealthMonitor([]*BackendHandle{h}, time.Hour, 100*time.Millisecond, 3)

	// A backend that never answers goes unknown -> unhealthy, never healthy.
	m.probe(h)
	m.probe(h)
	if got := h.Health(); got.Status != StatusUnknown {
		t.Errorf("Expected unknown before threshold, got %v", got.Status)
	}
	m.probe(h)
	if got := h.Health(); got.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy at threshold, got %v", got.Status)
	}
}

func TestHealthMonitor_StartStop(t *testing.T) {
	fb := newFakeBackend("local")
	h := newHandle(fb)
	m := NewHealthMonitor([]*BackendHandle{h}, 10*time.Millisecond, 100*time.Millisecond, 3)

	m.Start()

	// The initial sweep runs immediately; health should leave unknown well
	// within the deadline.
	deadline := time.Now().Add(2 * time.Second)
	for h.Health().Status != StatusHealthy {
		if time.Now().After(deadline) {
			t.Fatal("Backend never became healthy")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if h.Health().LastProbe.IsZero() {
		t.Error("Expected LastProbe to be recorded")
	}

	m.Stop()
}
