package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"golang.org/x/sync/errgroup"

	apihttp "moviescout/internal/api/http"
	"moviescout/internal/app"
	"moviescout/internal/catalog"
	"moviescout/internal/debounce"
	"moviescout/internal/domain"
	"moviescout/internal/domain/ports"
	"moviescout/internal/metrics"
	"moviescout/internal/providers/tmdb"
	mongorepo "moviescout/internal/repository/mongo"
	"moviescout/internal/repository/redisstore"
	"moviescout/internal/storage/memory"
	"moviescout/internal/telemetry"
	"moviescout/internal/trending"
	"moviescout/internal/watcher"
)

const (
	serviceName            = "moviescout"
	trendingBroadcastQuiet = 250 * time.Millisecond
	shutdownTimeout        = 10 * time.Second
)

type trendingBackend interface {
	ports.TrendingStore
	ports.Pinger
}

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("tmdbBaseURL", cfg.TMDBBaseURL),
		slog.Bool("hasTMDBKey", strings.TrimSpace(cfg.TMDBAPIKey) != ""),
		slog.Duration("catalogTimeout", cfg.CatalogTimeout),
		slog.Duration("searchDebounce", cfg.SearchDebounce),
		slog.String("trendingBackend", cfg.TrendingBackend),
		slog.Int("trendingLimit", cfg.TrendingLimit),
		slog.Bool("trendingWatch", cfg.TrendingWatch),
		slog.Float64("rateLimitRPS", cfg.RateLimitRPS),
		slog.Bool("tracing", strings.TrimSpace(cfg.OTLPEndpoint) != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, mongoRepo, closeStore, err := buildTrendingStore(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("trending store init failed",
			slog.String("backend", cfg.TrendingBackend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer closeStore()

	aggregator := trending.NewAggregator(store, trending.Config{
		ImageBaseURL: cfg.TMDBImageBaseURL,
		Limit:        cfg.TrendingLimit,
		Logger:       logger,
	})
	dispatcher := trending.NewDispatcher(aggregator, trending.DispatcherConfig{
		QueueSize: cfg.TrendingQueueSize,
		Workers:   cfg.TrendingWorkers,
		Logger:    logger,
	})

	tmdbClient := tmdb.NewClient(tmdb.Config{
		APIKey:  cfg.TMDBAPIKey,
		BaseURL: cfg.TMDBBaseURL,
		Timeout: cfg.CatalogTimeout,
	})
	movies := catalog.NewService(tmdbClient, dispatcher, logger)

	apiServer := apihttp.NewServer(movies,
		apihttp.WithLogger(logger),
		apihttp.WithTrending(aggregator),
		apihttp.WithReadiness(store),
		apihttp.WithImageBaseURL(cfg.TMDBImageBaseURL),
		apihttp.WithDebounce(cfg.SearchDebounce),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)
	defer apiServer.Close()

	// Bursts of hits collapse into one trending push to live sessions.
	trendingPush := debounce.New(trendingBroadcastQuiet, func(struct{}) {
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
		defer cancel()
		apiServer.BroadcastTrending(ctx)
	})
	defer trendingPush.Stop()
	dispatcher.OnRecorded(func(domain.TrendingRecord) { trendingPush.Push(struct{}{}) })

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Live search sockets stay open; per-request deadlines come from the catalog timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(rootCtx)
	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})
	if cfg.TrendingWatch && mongoRepo != nil {
		w := watcher.New(mongoRepo.Collection(), func(_ context.Context, term string) {
			logger.Debug("trending change observed", slog.String("term", term))
			trendingPush.Push(struct{}{})
		}, watcher.WithLogger(logger))
		group.Go(func() error {
			return w.Run(groupCtx)
		})
	}
	group.Go(func() error {
		logger.Info("movie scout service started", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")
		apiServer.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("service stopped with error", slog.String("error", err.Error()))
		closeStore()
		os.Exit(1)
	}
	logger.Info("movie scout service stopped")
}

// buildTrendingStore opens the configured backend. The mongo repository is
// returned separately so the change-stream watcher can follow its collection.
func buildTrendingStore(ctx context.Context, cfg app.Config, logger *slog.Logger) (trendingBackend, *mongorepo.TrendingRepository, func(), error) {
	switch cfg.TrendingBackend {
	case app.BackendMemory:
		logger.Warn("using in-memory trending store, counters are lost on restart")
		return memory.NewTrendingStore(), nil, func() {}, nil

	case app.BackendRedis:
		redisOpts, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
		return redisstore.NewTrendingStore(client, redisstore.DefaultKeyPrefix), nil, func() { _ = client.Close() }, nil

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mongo connect: %w", err)
		}
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			closeFn()
			return nil, nil, nil, fmt.Errorf("mongo ping: %w", err)
		}
		repo := mongorepo.NewTrendingRepository(client, cfg.MongoDatabase, cfg.MongoCollection)
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		logger.Info("mongo connected",
			slog.String("database", cfg.MongoDatabase),
			slog.String("collection", cfg.MongoCollection),
		)
		return repo, repo, closeFn, nil
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
