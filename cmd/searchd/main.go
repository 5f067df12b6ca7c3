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

	"github.com/arvind-menon/passage-retrieval-platform/internal/analytics"
	"github.com/arvind-menon/passage-retrieval-platform/internal/search"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/health"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/logger"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/metrics"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/middleware"
	pkgredis "github.com/arvind-menon/passage-retrieval-platform/pkg/redis"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"snapshot_dir", cfg.Index.SnapshotDir,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	holder := search.NewModelHolder(cfg.Index.SnapshotDir)
	if err := holder.Reload(); err != nil {
		// A corrupt snapshot should not keep the service down; serve the
		// empty model and wait for the next rebuild announcement.
		slog.Error("initial snapshot load failed, serving empty model", "error", err)
	}

	m := metrics.New()
	m.ModelDocuments.Set(float64(holder.Current().Stats.DocCount))
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	var queryCache *search.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = search.NewQueryCache(redisClient, cfg.Redis)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, holder.HandleIndexComplete())
	defer reloadConsumer.Close()
	go func() {
		if err := reloadConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("index-complete consumer error", "error", err)
		}
	}()

	if queryCache != nil {
		invalidateConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, queryCache.HandleCacheInvalidate())
		defer invalidateConsumer.Close()
		go func() {
			if err := invalidateConsumer.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("cache-invalidate consumer error", "error", err)
			}
		}()
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	defer producer.Close()
	collector := analytics.NewCollector(producer, 10000)
	collector.Start(ctx)
	defer collector.Close()

	aggregator := analytics.NewAggregator(nil)
	eventsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(aggregator))
	defer eventsConsumer.Close()
	go func() {
		if err := eventsConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("search-events consumer error", "error", err)
		}
	}()
	analyticsH := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		mdl := holder.Current()
		if mdl.IsEmpty() {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "serving empty model"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents", mdl.Stats.DocCount),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	service := search.NewService(holder)
	h := search.NewHandler(service, holder, queryCache, collector, m, cfg.Search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/model", h.ModelStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
