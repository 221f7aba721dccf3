package cache

import (
	"math"
	"sync/atomic"
)

// emaAlpha weights the latest latency sample in the moving average.
const emaAlpha = 0.2

// backendStats holds per-backend counters. Latency is an exponential moving
// average stored as float64 bits so readers never take a lock.
type backendStats struct {
	errors    atomic.Uint64
	latencyMS atomic.Uint64 // math.Float64bits
}

func (b *backendStats) observeLatency(ms float64) {
	for {
		old := b.latencyMS.Load()
		prev := math.Float64frombits(old)
		next := ms
		if prev != 0 {
			next = emaAlpha*ms + (1-emaAlpha)*prev
		}
		if b.latencyMS.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Stats tracks service counters with atomic increments; there is no single
// lock guarding the whole object. Counters only grow until an explicit Reset.
type Stats struct {
	gets          atomic.Uint64
	hits          atomic.Uint64
	misses        atomic.Uint64
	sets          atomic.Uint64
	deletes       atomic.Uint64
	invalidations atomic.Uint64

	// Built once at service construction, read-only afterwards.
	backends map[string]*backendStats
}

func newStats(backendNames []string) *Stats {
	s := &Stats{backends: make(map[string]*backendStats, len(backendNames))}
	for _, name := range backendNames {
		s.backends[name] = &backendStats{}
	}
	return s
}

func (s *Stats) backend(name string) *backendStats {
	if b, ok := s.backends[name]; ok {
		return b
	}
	// Unknown names only happen on programmer error; drop into a sink so the
	// hot path never panics.
	return &backendStats{}
}

func (s *Stats) recordError(backend string) {
	s.backend(backend).errors.Add(1)
}

func (s *Stats) recordLatency(backend string, ms float64) {
	s.backend(backend).observeLatency(ms)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Gets          uint64             `json:"gets"`
	Hits          uint64             `json:"hits"`
	Misses        uint64             `json:"misses"`
	Sets          uint64             `json:"sets"`
	Deletes       uint64             `json:"deletes"`
	Invalidations uint64             `json:"invalidations"`
	HitRate       float64            `json:"hit_rate"`
	Errors        map[string]uint64  `json:"errors"`
	LatencyMS     map[string]float64 `json:"latency_ms"`
}

// Snapshot reads every counter without locking. Counters are read
// independently, so a snapshot taken under load may be internally skewed by
// in-flight operations; individual values are always exact.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Gets:          s.gets.Load(),
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		Sets:          s.sets.Load(),
		Deletes:       s.deletes.Load(),
		Invalidations: s.invalidations.Load(),
		Errors:        make(map[string]uint64, len(s.backends)),
		LatencyMS:     make(map[string]float64, len(s.backends)),
	}
	if total := snap.Hits + snap.Misses; total > 0 {
		snap.HitRate = float64(snap.Hits) / float64(total)
	}
	for name, b := range s.backends {
		snap.Errors[name] = b.errors.Load()
		snap.LatencyMS[name] = math.Float64frombits(b.latencyMS.Load())
	}
	return snap
}

// Reset zeroes all counters. Admin action only.
func (s *Stats) Reset() {
	s.gets.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.sets.Store(0)
	s.deletes.Store(0)
	s.invalidations.Store(0)
	for _, b := range s.backends {
		b.errors.Store(0)
		b.latencyMS.Store(0)
	}
}
