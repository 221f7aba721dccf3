package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashish-tandon/policycache/pkg/cache"
	"github.com/ashish-tandon/policycache/pkg/config"
	"github.com/ashish-tandon/policycache/pkg/logger"
	"github.com/ashish-tandon/policycache/pkg/metrics"
	"github.com/ashish-tandon/policycache/pkg/ratelimit"
	"github.com/ashish-tandon/policycache/pkg/telemetry"
)

var (
	Version = "0.1.0"
)

func main() {
	cfg := config.LoadConfig()
	logger.Init(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	mode, err := cache.ParseMode(cfg.Mode)
	if err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	ctx := context.Background()
	shutdownTracer, err := telemetry.InitTracer(ctx, "policycache", Version)
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	svc, err := cache.NewService(cache.Options{
		Local:             buildLocal(cfg),
		Remote:            buildRemote(cfg),
		Mode:              mode,
		Repopulate:        cfg.RepopulateOnFallbackHit,
		HealthInterval:    cfg.HealthCheckInterval,
		ProbeTimeout:      cfg.OperationTimeout,
		UnhealthyAfter:    cfg.UnhealthyAfterFailures,
		CompressThreshold: cfg.CompressThresholdBytes,
		InvalidateLimiter: buildLimiter(cfg),
	})
	if err != nil {
		log.Fatalf("Fatal: Failed to start cache service: %v", err)
	}

	if cfg.EnableMetrics {
		metrics.Init()
		http.Handle("/metrics", promhttp.Handler())
	}
	http.HandleFunc("/health", handleHealth(svc))
	http.HandleFunc("/admin/mode", handleMode(svc))
	http.HandleFunc("/admin/stats", handleStats(svc))

	server := &http.Server{Addr: ":" + cfg.Port}
	go func() {
		fmt.Printf("policycache v%s running on port %s (mode=%s)\n", Version, cfg.Port, cfg.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Fatal: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)
	svc.Close()
	shutdownTracer(shutdownCtx)
}

func buildLocal(cfg config.Config) cache.Backend {
	if cfg.LocalRedisAddr != "" {
		return cache.NewRedisBackend(cache.RedisOptions{
			Name:             "local",
			Addr:             cfg.LocalRedisAddr,
			Password:         cfg.LocalRedisPassword,
			ConnectTimeout:   cfg.ConnectTimeout,
			OperationTimeout: cfg.OperationTimeout,
		})
	}
	return cache.NewMemoryBackend("local", cfg.MemoryCacheLimitBytes)
}

func buildRemote(cfg config.Config) cache.Backend {
	if cfg.RemoteRedisAddr == "" {
		return nil
	}
	return cache.NewRedisBackend(cache.RedisOptions{
		Name:             "remote",
		Addr:             cfg.RemoteRedisAddr,
		Password:         cfg.RemoteRedisPassword,
		DB:               cfg.RemoteRedisDB,
		TLS:              cfg.RemoteRedisTLS,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	})
}

func buildLimiter(cfg config.Config) ratelimit.Limiter {
	if cfg.InvalidateRatePerMin <= 0 {
		return nil
	}
	if cfg.RemoteRedisAddr != "" {
		// Shared window when several instances invalidate the same redis.
		return ratelimit.NewRedisLimiter(cfg.RemoteRedisAddr, cfg.RemoteRedisPassword, cfg.RemoteRedisDB, cfg.InvalidateRatePerMin)
	}
	return ratelimit.NewMemoryLimiter(cfg.InvalidateRatePerMin, 1024, time.Hour)
}

func handleHealth(svc *cache.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

func handleMode(svc *cache.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]string{"mode": svc.Mode().String()})
		case http.MethodPut, http.MethodPost:
			var body struct {
				Mode string `json:"mode"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			mode, err := cache.ParseMode(body.Mode)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := svc.SetMode(mode); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"mode": svc.Mode().String()})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func handleStats(svc *cache.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, svc.Stats())
		case http.MethodDelete:
			svc.ResetStats()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
