package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cimillas/walkin-queue/internal/app"
	"github.com/cimillas/walkin-queue/internal/clock"
	"github.com/cimillas/walkin-queue/internal/config"
	"github.com/cimillas/walkin-queue/internal/events"
	"github.com/cimillas/walkin-queue/internal/logger"
	"github.com/cimillas/walkin-queue/internal/storage/memory"
	"github.com/cimillas/walkin-queue/internal/storage/postgres"
	transporthttp "github.com/cimillas/walkin-queue/internal/transport/http"
	"github.com/cimillas/walkin-queue/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const startupTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("")
		fallback.Fatal().Err(err).Msg("load config")
	}
	l := logger.New(cfg.Env)

	if err := run(cfg, l); err != nil {
		l.Fatal().Err(err).Msg("api stopped")
	}
}

// run starts the API and blocks until the server fails or a shutdown signal
// arrives. Resources opened here are released before it returns.
func run(cfg config.Config, l zerolog.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, closeStore, err := openStore(startupCtx, cfg, l)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}
	defer closeStore()

	opts := []app.QueueManagerOption{app.WithLogger(l)}
	if cfg.RedisURL != "" {
		rdb, err := events.Connect(startupCtx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, app.WithPublisher(events.NewRedisPublisher(rdb,
			events.WithStream(cfg.RedisStream),
			events.WithMaxLen(cfg.RedisStreamMaxLen),
		)))
		l.Info().Str("stream", cfg.RedisStream).Msg("publishing queue events to redis")
	} else {
		l.Warn().Msg("REDIS_URL not set, queue events disabled")
	}

	queue, err := app.NewQueueManager(startupCtx, store, clock.NewSystem(), opts...)
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: transporthttp.NewRouter(transporthttp.RouterConfig{
			Queue:              queue,
			Logger:             l,
			CORSOrigins:        cfg.CORSOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	l.Info().Str("addr", server.Addr).Str("storage", cfg.StorageDriver).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	case <-stopCtx.Done():
		l.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error().Err(err).Msg("server shutdown error")
	}
	l.Info().Msg("server stopped")
	return serveErr
}

// openStore returns the configured queue store and a function releasing it.
func openStore(ctx context.Context, cfg config.Config, l zerolog.Logger) (app.QueueStore, func(), error) {
	if cfg.StorageDriver != config.StoragePostgres {
		l.Warn().Msg("using in-memory store, queue state is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.NewQueueRepository(pool), pool.Close, nil
}
