package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/argom2011/TangoWEB/internal/config"
	"github.com/argom2011/TangoWEB/internal/metrics"
	"github.com/argom2011/TangoWEB/internal/outbox"
	"github.com/argom2011/TangoWEB/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	logger := log.Default()

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Storage != config.StoragePostgres {
		log.Fatalf("outbox relay needs postgres storage, got %q", cfg.Storage)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		cancel()
		log.Fatalf("connect to db: %v", err)
	}
	err = pool.Ping(startupCtx)
	cancel()
	if err != nil {
		pool.Close()
		log.Fatalf("db ping: %v", err)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	publisher, closePublisher := outbox.NewPublisher(cfg.KafkaBrokers, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			log.Printf("publisher close error: %v", err)
		}
	}()

	relay := outbox.NewRelay(postgres.NewOutboxRepository(pool), publisher,
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithLogger(logger),
		outbox.WithObserver(m),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	metricsServer := &http.Server{
		Addr:              cfg.OutboxMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("outbox relay metrics on %s", cfg.OutboxMetricsAddr)
	if err := relay.Run(stopCtx); err != nil {
		log.Printf("relay error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	log.Printf("outbox relay stopped")
}
