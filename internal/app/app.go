package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/mertkaradayi/bookcart/internal/config"
	"github.com/mertkaradayi/bookcart/internal/event"
	httphandler "github.com/mertkaradayi/bookcart/internal/handler/http"
	redisrepo "github.com/mertkaradayi/bookcart/internal/repository/redis"
	"github.com/mertkaradayi/bookcart/internal/service"
	"github.com/mertkaradayi/bookcart/pkg/health"
	pkgkafka "github.com/mertkaradayi/bookcart/pkg/kafka"
	"github.com/mertkaradayi/bookcart/pkg/tracing"
)

// App wires the cart service together and owns its lifecycle.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	redis    *redis.Client
	producer *pkgkafka.Producer
	server   *http.Server

	shutdownTracing func(context.Context) error
}

// New builds the application from configuration. Dependencies are dialed
// here so a broken environment fails at startup, not on the first request.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	shutdownTracing, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.Kafka.Brokers), logger)

	cartRepo := redisrepo.NewCartRepository(redisClient, cfg.Cart.TTL)
	catalogRepo := redisrepo.NewCatalogRepository(redisClient)
	events := event.NewProducer(producer, logger)
	cartService := service.NewCartService(cartRepo, catalogRepo, events, logger, cfg.Cart.TTL)
	cartHandler := httphandler.NewCartHandler(cartService, logger)

	healthHandler := health.NewHandler()
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", producer.Ping)

	router := httphandler.NewRouter(cartHandler, healthHandler, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		redis:           redisClient,
		producer:        producer,
		server:          server,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var firstErr error

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Error("http shutdown failed", slog.String("error", err.Error()))
		firstErr = err
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close failed", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close failed", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.Error("tracing shutdown failed", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// SeedCatalog loads book snapshots into the catalog. Intended for local
// development and integration tests.
func (a *App) SeedCatalog(ctx context.Context, books []SeedBook) error {
	catalog := redisrepo.NewCatalogRepository(a.redis)
	for i := range books {
		book := books[i].toDomain()
		if err := catalog.PutBook(ctx, book); err != nil {
			return fmt.Errorf("seed book %s: %w", book.ID, err)
		}
	}
	a.logger.Info("catalog seeded", slog.Int("books", len(books)))
	return nil
}
