package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/argom2011/TangoWEB/internal/app"
	"github.com/argom2011/TangoWEB/internal/clock"
	"github.com/argom2011/TangoWEB/internal/config"
	"github.com/argom2011/TangoWEB/internal/metrics"
	"github.com/argom2011/TangoWEB/internal/outbox"
	"github.com/argom2011/TangoWEB/internal/storage/memory"
	"github.com/argom2011/TangoWEB/internal/storage/postgres"
	"github.com/argom2011/TangoWEB/internal/telemetry"
	transporthttp "github.com/argom2011/TangoWEB/internal/transport/http"
	"github.com/argom2011/TangoWEB/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName     = "tango-api"
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// backend is everything the HTTP layer needs from storage.
type backend struct {
	catalog interface {
		app.Catalog
		app.CatalogReader
	}
	gateway app.Gateway
	orders  app.OrderReader
	outbox  outbox.Store
	health  transporthttp.Pinger
	close   func()
}

func main() {
	logger := log.Default()

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var traceOut io.Writer
	if cfg.TracesStdout {
		traceOut = os.Stdout
	}
	shutdownTracing, err := telemetry.Setup(serviceName, traceOut)
	if err != nil {
		log.Fatalf("setup tracing: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	be, err := openBackend(startupCtx, cfg, logger)
	cancel()
	if err != nil {
		log.Fatalf("open %s storage: %v", cfg.Storage, err)
	}
	defer be.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	commitSvc := app.NewCommitService(be.catalog, be.gateway, clock.NewSystem(),
		app.WithCommitTimeout(cfg.CommitTimeout),
		app.WithRetryConfig(retryConfig(cfg.CommitMaxAttempts)),
		app.WithPriceTolerance(cfg.PriceTolerance),
		app.WithEventTopic(cfg.KafkaTopic),
		app.WithLogger(logger),
		app.WithRecorder(m),
	)

	mux := transporthttp.NewRouter(transporthttp.Routes{
		Commit:     commitSvc,
		Orders:     app.NewOrderQueryService(be.orders),
		Catalog:    app.NewCatalogService(be.catalog),
		Health:     be.health,
		Metrics:    metrics.Handler(reg),
		Instrument: m.InstrumentHandler,
	})

	handler := otelhttp.NewHandler(
		transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger),
		"http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayDone := make(chan struct{})
	if cfg.Storage == config.StorageMemory {
		// memory storage has no other process that could drain the outbox
		publisher, closePublisher := outbox.NewPublisher(cfg.KafkaBrokers, logger)
		relay := outbox.NewRelay(be.outbox, publisher,
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithLogger(logger),
			outbox.WithObserver(m),
		)
		go func() {
			defer close(relayDone)
			defer func() {
				if err := closePublisher(); err != nil {
					logger.Printf("outbox publisher close error: %v", err)
				}
			}()
			_ = relay.Run(stopCtx)
		}()
	} else {
		close(relayDone)
	}

	log.Printf("api listening on :%s storage=%s", cfg.Port, cfg.Storage)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
		stop()
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	<-relayDone
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("tracing shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (backend, error) {
	if cfg.Storage == config.StorageMemory {
		store := memory.New()
		store.Seed()
		logger.Printf("WARN: using in-memory storage with demo catalog; data is lost on exit")
		return backend{
			catalog: store,
			gateway: store,
			orders:  store,
			outbox:  store,
			close:   func() {},
		}, nil
	}

	iso, err := postgres.ParseIsolation(cfg.TxIsolation)
	if err != nil {
		return backend{}, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return backend{}, err
	}
	if cfg.MigrateOnStart {
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return backend{}, err
		}
		if len(applied) > 0 {
			logger.Printf("applied migrations: %s", strings.Join(applied, ", "))
		}
	}

	return backend{
		catalog: postgres.NewCatalogRepository(pool),
		gateway: postgres.NewOrderGateway(pool, iso),
		orders:  postgres.NewOrderRepository(pool),
		outbox:  postgres.NewOutboxRepository(pool),
		health:  pool,
		close:   pool.Close,
	}, nil
}

func retryConfig(maxAttempts int) app.RetryConfig {
	cfg := app.DefaultRetryConfig()
	cfg.MaxAttempts = maxAttempts
	return cfg
}
