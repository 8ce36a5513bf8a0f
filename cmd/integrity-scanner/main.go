package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lzjever/lgu-integrity/internal/alert"
	"github.com/lzjever/lgu-integrity/internal/api/middleware"
	"github.com/lzjever/lgu-integrity/internal/incident"
	"github.com/lzjever/lgu-integrity/internal/integrity"
	"github.com/lzjever/lgu-integrity/internal/ledger"
	"github.com/lzjever/lgu-integrity/internal/observability"
	"github.com/lzjever/lgu-integrity/internal/scanner"
	"github.com/lzjever/lgu-integrity/internal/store"
)

func main() {
	var cfg scanner.Config
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, _ := observability.NewLogger(cfg.LogLevel)
	defer log.Sync()

	observability.RegisterAll(prometheus.DefaultRegisterer)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	defer pool.Close()

	var oracle ledger.Oracle = ledger.Unconfigured{}
	if cfg.LedgerAddr != "" {
		client, err := ledger.New(cfg.LedgerAddr, cfg.LedgerTimeout)
		if err != nil {
			log.Fatal("ledger connect failed", zap.Error(err))
		}
		defer client.Close()
		oracle = client
	} else {
		log.Warn("LEDGER_ADDR not set, every record will be skipped")
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

	job := integrity.NewScanJob(
		store.NewRecordStore(pool),
		integrity.NewVerifier(oracle),
		incident.NewService(store.NewIncidentStore(pool), alerts, log),
		integrity.ScanConfig{Window: cfg.Window(), MaxPerRun: cfg.MaxPerRun},
		log,
	)

	sched, err := scanner.NewScheduler(job, cfg.Schedule, log)
	if err != nil {
		log.Fatal("scheduler setup failed", zap.Error(err))
	}

	adminSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: scanner.AdminHandler(sched, prometheus.DefaultGatherer, middleware.AuthConfig{
			Secret: []byte(cfg.JWTSecret),
			Role:   cfg.OperatorRole,
		}),
	}
	go func() {
		log.Info("admin server starting", zap.String("addr", cfg.MetricsAddr))
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("admin server failed", zap.Error(err))
		}
	}()

	sched.Start()
	if cfg.RunOnStart {
		go sched.RunNow(scanner.TriggerStartup)
	}

	<-ctx.Done()
	log.Info("shutting down scanner")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("active scan cancelled at shutdown", zap.Error(err))
	}
	_ = adminSrv.Shutdown(shutdownCtx)

	log.Info("scanner stopped")
}
