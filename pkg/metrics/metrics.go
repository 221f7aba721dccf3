package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Cache Metrics
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policycache_ops_total",
			Help: "Total number of cache operations.",
		},
		[]string{"op", "result"}, // result: hit, miss, ok, error, throttled
	)
	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policycache_op_duration_seconds",
			Help:    "Duration of cache operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Backend Metrics
	BackendErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policycache_backend_errors_total",
			Help: "Total number of backend failures by kind.",
		},
		[]string{"backend", "kind"},
	)
	BackendUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "policycache_backend_up",
			Help: "Whether the backend passed its last health probe.",
		},
		[]string{"backend"},
	)
	BackendProbeLatency = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "policycache_backend_probe_latency_seconds",
			Help: "Latency of the last health probe.",
		},
		[]string{"backend"},
	)

	// Mode Metrics
	ModeInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "policycache_mode",
			Help: "Active operating mode (the active mode's label is 1).",
		},
		[]string{"mode"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(CacheOpsTotal)
	prometheus.MustRegister(OpDuration)
	prometheus.MustRegister(BackendErrorsTotal)
	prometheus.MustRegister(BackendUp)
	prometheus.MustRegister(BackendProbeLatency)
	prometheus.MustRegister(ModeInfo)
}
