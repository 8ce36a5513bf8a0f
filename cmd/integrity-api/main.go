package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/alert"
	"github.com/lzjever/lgu-integrity/internal/anchor"
	"github.com/lzjever/lgu-integrity/internal/api"
	"github.com/lzjever/lgu-integrity/internal/api/middleware"
	"github.com/lzjever/lgu-integrity/internal/auditlog"
	"github.com/lzjever/lgu-integrity/internal/incident"
	"github.com/lzjever/lgu-integrity/internal/integrity"
	"github.com/lzjever/lgu-integrity/internal/ledger"
	"github.com/lzjever/lgu-integrity/internal/observability"
	"github.com/lzjever/lgu-integrity/internal/store"
)

type recordBackend interface {
	api.RecordStore
	anchor.BacklinkWriter
	auditlog.RecordCreator
}

func main() {
	var cfg api.Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, _ := observability.NewLogger(cfg.LogLevel)
	defer log.Sync()

	zap.ReplaceGlobals(log)

	reg := prometheus.DefaultRegisterer
	observability.RegisterAll(reg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		records   recordBackend
		incidents incident.Repository
	)
	if cfg.DBDSN == "" {
		log.Warn("INTEGRITY_DB_DSN not set, using in-memory stores")
		records = store.NewMemoryRecordStore()
		incidents = store.NewMemoryIncidentStore()
	} else {
		pool, err := store.Open(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		records = store.NewRecordStore(pool)
		incidents = store.NewIncidentStore(pool)
	}

	var oracle ledger.Oracle = ledger.Unconfigured{}
	if cfg.LedgerAddr != "" {
		client, err := ledger.New(cfg.LedgerAddr, cfg.LedgerTimeout)
		if err != nil {
			log.Fatal("ledger connect failed", zap.Error(err))
		}
		defer client.Close()
		oracle = client
	} else {
		log.Warn("LEDGER_ADDR not set, anchoring disabled")
	}

	var cooldown alert.Cooldown = alert.NewMemoryCooldown(cfg.AlertCooldown())
	if cfg.AlertRedisAddr != "" {
		rc, err := alert.NewRedisCooldown(cfg.AlertRedisAddr, cfg.AlertCooldown())
		if err != nil {
			log.Fatal("alert cooldown store unavailable", zap.Error(err))
		}
		defer rc.Close()
		cooldown = rc
	}
	alerts := alert.NewDispatcher(alert.LogNotifier{Log: log}, cooldown, log)

	queue := anchor.New(oracle, records, anchor.Config{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
	}, log)

	apiHandler := api.NewAPI(api.Deps{
		Incidents: incident.NewService(incidents, alerts, log),
		Records:   records,
		Writer:    auditlog.NewWriter(records, queue, oracle, log),
		Verifier:  integrity.NewVerifier(oracle),
		Queue:     queue,
		Auth: middleware.AuthConfig{
			Secret: []byte(cfg.JWTSecret),
			Role:   cfg.OperatorRole,
		},
	}, log)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      apiHandler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	go func() {
		log.Info("metrics server starting", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		log.Info("API server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("API server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down API server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := queue.Drain(shutdownCtx); err != nil {
		log.Warn("anchor queue not drained before shutdown", zap.Error(err))
	}
	if n := queue.Stop(); n > 0 {
		log.Warn("anchor jobs discarded at shutdown", zap.Int("count", n))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	log.Info("API server stopped")
}
