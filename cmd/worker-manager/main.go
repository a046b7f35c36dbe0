// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"salesforce-query-workers/internal/common/audit"
	"salesforce-query-workers/internal/common/camunda"
	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/database"
	"salesforce-query-workers/internal/common/jobledger"
	"salesforce-query-workers/internal/common/logger"
	"salesforce-query-workers/internal/common/observability"
	"salesforce-query-workers/internal/pipeline"
	crmquery "salesforce-query-workers/internal/workers/crm/crm-query"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			log.Warn("Observability shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zeebe, err := camunda.NewClient(ctx, camunda.ClientConfigFrom(cfg.Camunda))
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	log.Info("Zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	recorder, err := audit.NewRecorder(ctx, cfg)
	if err != nil {
		zapLog.Fatal("audit recorder init failed", zap.Error(err), zap.String("backend", cfg.Audit.Backend))
	}
	defer recorder.Close()
	log.Info("Audit recorder ready", map[string]interface{}{"backend": recorder.Backend()})

	var ledger jobledger.Ledger = jobledger.NopLedger{}
	if cfg.Ledger.Enabled {
		redis := database.NewRedis(cfg.Database.Redis)
		defer redis.Close()
		if err := redis.Ping(ctx); err != nil {
			log.Warn("Redis unavailable, job ledger disabled", map[string]interface{}{"error": err.Error()})
		} else {
			ledger = jobledger.NewRedisLedger(redis.Client, cfg.Ledger.KeyPrefix, config.GetDuration(cfg.Ledger.TTL))
			log.Info("Job ledger connected", map[string]interface{}{"address": cfg.Database.Redis.Address})
		}
	}

	handler, err := crmquery.NewHandler(crmquery.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Logger:        log,
		Runner:        pipeline.FromConfig(cfg, log),
		Recorder:      recorder,
		Ledger:        ledger,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("crm-query handler init failed", zap.Error(err))
	}
	if err := handler.Register(); err != nil {
		zapLog.Fatal("crm-query registration failed", zap.Error(err))
	}
	defer handler.Close()

	srv := newHTTPServer(cfg.App.HTTPAddress, handler)
	go func() {
		log.Info("Health/Metrics server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Health/Metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped", nil)
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

func newHTTPServer(addr string, checker healthChecker) *http.Server {
	if addr == "" {
		addr = ":8080"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", "")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := checker.HealthCheck(ctx); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ready", "")
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeStatus(w http.ResponseWriter, code int, status, detail string) {
	body := map[string]string{"status": status}
	if detail != "" {
		body["error"] = detail
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
