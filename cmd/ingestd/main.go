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

	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest/handler"
	"github.com/arvind-menon/passage-retrieval-platform/internal/ingest/publisher"
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
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingest service", "port", cfg.Server.Port)

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
	slog.Info("passage store ready", "database", cfg.Postgres.Database)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusChanged)
	defer producer.Close()
	pub := publisher.New(passages, producer)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(pub, passages, cfg.Ingest)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sources", h.ReplaceSource)
	mux.HandleFunc("DELETE /api/v1/sources/{id}", h.DeleteSource)
	mux.HandleFunc("GET /api/v1/sources", h.ListSources)
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

	slog.Info("ingest service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("ingest service stopped")
}
