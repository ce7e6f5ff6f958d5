package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"

	"github.com/foodshed/market-api/internal/app"
	"github.com/foodshed/market-api/internal/config"
	"github.com/foodshed/market-api/internal/distribution"
	"github.com/foodshed/market-api/internal/lock"
	"github.com/foodshed/market-api/internal/obs"
	"github.com/foodshed/market-api/internal/queue"
	"github.com/foodshed/market-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := app.OpenPostgres(bootCtx, cfg, "market-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("open postgres")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(bootCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}

	st := store.New(pool)

	distSvc := &distribution.Service{
		Store: st,
		Locker: lock.Locker{
			R:              redisClient,
			RetryBackoff:   50 * time.Millisecond,
			AcquireTimeout: cfg.RecomputeLockAcquire,
		},
		LockTTL:      cfg.RecomputeLockTTL,
		LockAttempts: cfg.RecomputeAttempts,
		Cfg:          distribution.Config{Currency: cfg.Currency},
		Log:          logger,
	}

	recomputeWorker := queue.Worker{
		R:                 redisClient,
		Prefix:            cfg.QueuePrefix,
		Kind:              queue.KindRecompute,
		Concurrency:       cfg.QueueConcurrency,
		VisibilityTimeout: cfg.QueueVisibilityTimeout,
		SoftDeadline:      cfg.WorkerSoftDeadline,
		RetryBase:         cfg.QueueBackoffBase,
		RetryJitter:       cfg.QueueBackoffJitter,
		Store:             queue.NewStore(pool),
		Logger:            &logger,
		Handler:           queue.RecomputeHandler(distSvc),
	}

	logger.Info().Msg("worker starting")
	if err := recomputeWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}
