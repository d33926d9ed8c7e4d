// Command admin starts the administrative HTTP service.
//
// It exposes reindex orchestration, index lifecycle operations (create,
// mappings, dynamic settings), and streaming resource-id jobs, plus health
// and Prometheus metrics endpoints.
//
// Usage:
//
//	go run ./cmd/admin [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/jobs"
	"github.com/opencatalog/search-indexer/internal/locations"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/reindex"
	"github.com/opencatalog/search-indexer/internal/search"
	"github.com/opencatalog/search-indexer/internal/server"
	"github.com/opencatalog/search-indexer/pkg/config"
	"github.com/opencatalog/search-indexer/pkg/health"
	"github.com/opencatalog/search-indexer/pkg/logger"
	"github.com/opencatalog/search-indexer/pkg/metrics"
	"github.com/opencatalog/search-indexer/pkg/postgres"
	"github.com/opencatalog/search-indexer/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting admin service", "port", cfg.Server.Port, "engine_url", cfg.Engine.URL)

	catalog, err := metadata.Load(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load resource catalog", "error", err)
		os.Exit(1)
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	m := metrics.New()
	engine := search.NewHTTPEngine(cfg.Engine)
	lifecycle := index.NewService(engine, catalog, index.StaticMappings{}, cfg.Engine)
	tenants := consortium.NewConfigTenantProvider(cfg.Consortium)
	aggregator := consortium.NewAggregator(consortium.NewRedisStore(redisClient), catalog, tenants, m)

	tree := locations.NewService(
		locations.NewPostgresReader(db),
		lifecycle,
		engine,
		catalog,
		m,
		cfg.Reindex.LocationWorker,
	)
	orchestrator := reindex.NewOrchestrator(
		catalog,
		lifecycle,
		tenants,
		aggregator,
		tree,
		reindex.NewHTTPClient(cfg.Engine.RequestTimeout, m),
		cfg.Reindex,
		m,
	)

	jobStore := jobs.NewPostgresStore(db)
	runner := jobs.NewRunner(jobStore, m)
	streams := jobs.NewStreamService(jobStore, runner, jobs.NewPostgresIDSource(db), jobs.NewPostgresIDSink(db))

	checker := health.NewChecker()
	checker.Register("postgres", probe(db.Ping))
	checker.Register("redis", probe(redisClient.Ping))
	checker.Register("engine", probe(func(ctx context.Context) error {
		_, err := engine.IndexExists(ctx, "instance_probe")
		return err
	}))

	handler := server.NewHandler(orchestrator, lifecycle, streams)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.New(handler, checker, m, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		// Let already-submitted streaming jobs record their terminal state.
		runner.Wait()
	}()

	slog.Info("admin service listening", "addr", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("admin service stopped")
}

// probe adapts a plain error-returning check into a timed health.Check.
func probe(fn func(ctx context.Context) error) health.Check {
	return func(ctx context.Context) health.ComponentHealth {
		start := time.Now()
		if err := fn(ctx); err != nil {
			return health.ComponentHealth{
				Status:  health.StatusDown,
				Message: err.Error(),
				Latency: time.Since(start).String(),
			}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Latency: time.Since(start).String(),
		}
	}
}
