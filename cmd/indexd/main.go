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

	"github.com/arvind-menon/passage-retrieval-platform/internal/rebuild"
	"github.com/arvind-menon/passage-retrieval-platform/internal/snapshot"
	"github.com/arvind-menon/passage-retrieval-platform/internal/store"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/config"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/health"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/kafka"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/logger"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/metrics"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/middleware"
	"github.com/arvind-menon/passage-retrieval-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	rebuildNow := flag.Bool("rebuild-now", false, "run one rebuild immediately at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting index service",
		"snapshot_dir", cfg.Index.SnapshotDir,
		"debounce", cfg.Index.RebuildDebounce,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	passages := store.New(db)
	if err := passages.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	completes := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer completes.Close()
	invalidate := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate)
	defer invalidate.Close()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	rebuilder := rebuild.New(passages, completes, invalidate, cfg.Index, m)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusChanged, rebuilder.HandleCorpusChanged())
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("corpus-changed consumer error", "error", err)
		}
	}()

	if *rebuildNow {
		rebuilder.Trigger()
	} else if latest, err := snapshot.Latest(cfg.Index.SnapshotDir); err == nil && latest == "" {
		// Cold start with no snapshot on disk: build one so searchers have
		// something to load without waiting for the first corpus change.
		slog.Info("no snapshot on disk, scheduling initial rebuild")
		rebuilder.Trigger()
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("snapshot_dir", func(ctx context.Context) health.ComponentHealth {
		if _, err := snapshot.Latest(cfg.Index.SnapshotDir); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/rebuild", func(w http.ResponseWriter, r *http.Request) {
		rebuilder.Trigger()
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, `{"status":"scheduled"}`)
	})
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		slog.Info("index service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	// The rebuild loop is the service's real work; it blocks until shutdown.
	if err := rebuilder.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("rebuild loop error", "error", err)
	}

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

	slog.Info("index service stopped")
}
