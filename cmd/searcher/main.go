package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Document-Search-Index-Engine/pkg/redis"
)

const backfillBatch = 500

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, nil); err != nil {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}
	checker := health.NewChecker()

	engineOpts := []indexer.Option{indexer.WithMetrics(m)}
	var textSource *postgres.TextSource
	if cfg.Postgres.Host != "" {
		pg, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		textSource = postgres.NewTextSource(pg)
		engineOpts = append(engineOpts, indexer.WithTextSource(textSource))
		checker.Register("postgres", health.PingCheck(pg.Ping, false))
		slog.Info("text source enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	engine := indexer.NewEngine(cfg.Index, engineOpts...)
	defer engine.Close()
	if path := cfg.Index.SnapshotPath; path != "" {
		switch err := engine.LoadSnapshot(path); {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
			slog.Info("no snapshot found, starting with an empty index", "path", path)
		default:
			slog.Error("failed to load snapshot", "path", path, "error", err)
			os.Exit(1)
		}
	}
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", engine.Store().DocCount(), engine.Store().TermCount()),
		}
	})

	queryCache := newQueryCache(ctx, cfg, m, checker)

	policy, _ := parser.ParsePolicy(cfg.Search.MatchPolicy)
	rule, _ := parser.ParseCountRule(cfg.Search.CountRule)
	exec := executor.New(engine.Store(), parser.New(engine.Tokenizer(), policy, rule), executor.OptionsFromConfig(cfg.Search))

	handlerOpts := []handler.Option{
		handler.WithQueryLog(analytics.NewQueryLog(0)),
		handler.WithMetrics(m),
	}
	if queryCache != nil {
		handlerOpts = append(handlerOpts, handler.WithCache(queryCache))
	}
	h := handler.New(exec, engine, cfg.Search, handlerOpts...)

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		consumerOpts := []consumer.Option{consumer.WithPublisher(producer)}
		if textSource != nil {
			consumerOpts = append(consumerOpts, consumer.WithStatusRecorder(textSource))
		}
		ic := consumer.New(engine, consumerOpts...)
		kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, ic.Handle)
		var consumerErr atomic.Pointer[error]
		checker.Register("ingestion", func(context.Context) health.ComponentHealth {
			if errp := consumerErr.Load(); errp != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: (*errp).Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		go func() {
			if err := kc.Start(ctx); err != nil {
				consumerErr.Store(&err)
				slog.Error("ingestion consumer stopped", "error", err)
			}
		}()
		slog.Info("ingestion consumer started",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.GroupID(),
		)
	}
	if textSource != nil {
		go backfill(ctx, engine, textSource)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	middlewares := []func(http.Handler) http.Handler{
		middleware.Metrics(m),
		middleware.RequestID,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		middlewares = append(middlewares, middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	}
	middlewares = append(middlewares, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middlewares...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	if path := cfg.Index.SnapshotPath; path != "" {
		if err := engine.SaveSnapshot(path); err != nil {
			slog.Error("failed to save snapshot", "path", path, "error", err)
		}
	}
	slog.Info("search service stopped")
}

// newQueryCache builds the configured result cache. An unreachable Redis
// disables caching instead of failing startup.
func newQueryCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checker *health.Checker) *cache.QueryCache {
	switch cfg.Cache.Backend {
	case "memory":
		slog.Info("in-process search cache enabled", "size", cfg.Cache.Size, "ttl", cfg.Cache.TTL)
		return cache.New(cache.NewMemoryBackend(cfg.Cache.Size, cfg.Cache.TTL), m)
	case "redis":
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			return nil
		}
		context.AfterFunc(ctx, func() { _ = client.Close() })
		checker.Register("redis", health.PingCheck(client.Ping, true))
		slog.Info("redis search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		return cache.New(cache.NewRedisBackend(client, cfg.Cache.TTL), m)
	default:
		return nil
	}
}

// backfill indexes documents whose text was stored before this process
// started listening for events.
func backfill(ctx context.Context, engine *indexer.Engine, src *postgres.TextSource) {
	report, err := engine.Backfill(ctx, src, backfillBatch)
	if err != nil && ctx.Err() == nil {
		slog.Error("backfill failed", "error", err, "indexed", report.Indexed, "failed", report.Failed)
		return
	}
	slog.Info("backfill complete", "indexed", report.Indexed, "failed", report.Failed)
}
