// Command indexer starts the write-path service.
//
// It consumes resource change events and instance-id batches from Kafka,
// runs them through the consolidation/conversion pipeline, aggregates
// consortium-shared resources into central-tenant indexes, and bulk-writes
// the results to the search engine.
//
// Usage:
//
//	go run ./cmd/indexer [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/opencatalog/search-indexer/internal/consolidate"
	"github.com/opencatalog/search-indexer/internal/consortium"
	"github.com/opencatalog/search-indexer/internal/convert"
	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/metadata"
	"github.com/opencatalog/search-indexer/internal/pipeline"
	"github.com/opencatalog/search-indexer/internal/search"
	"github.com/opencatalog/search-indexer/pkg/config"
	"github.com/opencatalog/search-indexer/pkg/kafka"
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
	slog.Info("starting indexer service",
		"engine_url", cfg.Engine.URL,
		"events_topic", cfg.Kafka.Topics.ResourceEvents,
	)

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

	contributorProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ContributorEvents)
	defer contributorProducer.Close()

	service := pipeline.NewService(
		consolidate.New(catalog),
		convert.New(catalog, tenants),
		lifecycle,
		engine,
		catalog,
		tenants,
		aggregator,
		pipeline.NewPostgresFetcher(db, "instance"),
		pipeline.NewKafkaMessageProducer(contributorProducer),
		m,
	)

	eventConsumer := pipeline.NewEventConsumer(cfg.Kafka, cfg.Kafka.Topics.ResourceEvents, service)
	idConsumer := pipeline.NewInstanceIDConsumer(cfg.Kafka, cfg.Kafka.Topics.InstanceIDs, service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eventConsumer.Start(gctx) })
	g.Go(func() error { return idConsumer.Start(gctx) })

	slog.Info("indexer service ready, consuming from kafka",
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := g.Wait(); err != nil {
		slog.Error("consumer error", "error", err)
	}

	if shutdownMetrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", "error", err)
		}
	}

	slog.Info("indexer service stopped")
}
