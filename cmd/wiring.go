package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arxon-dev/topicperf/internal/adapters/locker"
	"github.com/arxon-dev/topicperf/internal/adapters/repository"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/memory"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/postgres"
	"github.com/arxon-dev/topicperf/internal/adapters/repository/sqlite"
	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/config"
	"github.com/arxon-dev/topicperf/internal/domain/catalog"
	"github.com/arxon-dev/topicperf/internal/domain/classifier"
	"github.com/arxon-dev/topicperf/internal/domain/dedupe"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
	"github.com/arxon-dev/topicperf/pkg/logger"
)

const redisPingTimeout = 3 * time.Second

// openStore opens the configured backend and wraps it with latency metrics.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var (
		store repository.Store
		err   error
	)
	driver := strings.ToLower(cfg.StoreDriver)
	switch driver {
	case config.DriverMemory:
		store = memory.New()
	case config.DriverSQLite:
		store, err = sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		store, err = postgres.Open(ctx, cfg.PostgresDSN, postgres.WithAutoMigrate(true))
	default:
		err = fmt.Errorf("%w %q", config.ErrUnknownDriver, cfg.StoreDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	return repository.Instrument(store, driver), nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

func newClassifier(cfg *config.Config) (*classifier.Classifier, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	var opts []classifier.Option
	if cfg.FuzzyEnabled {
		opts = append(opts, classifier.WithFuzzy(cfg.FuzzyMaxDistance, cfg.FuzzyMinCoverage))
	}
	return classifier.New(cat, opts...), nil
}

// buildService assembles a Service from cfg. When redis_addr is set the
// rollup lock and the outcome id dedupe are shared through Redis. The
// returned cleanup closes the Redis client; Service.Stop closes the store.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, func(), error) {
	cls, err := newClassifier(cfg)
	if err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []service.Option{
		service.WithStore(store),
		service.WithClassifier(cls),
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithRetry(cfg.RetryMaxTries, cfg.RetryInitialInterval, cfg.RetryMaxInterval),
		service.WithRollupSchedule(cfg.RollupSchedule, cfg.RollupWindowDays),
		service.WithRollupOptions(
			rollup.WithLocation(loc),
			rollup.WithSecondsPerQuestion(uint64(cfg.SecondsPerQuestion)),
			rollup.WithActiveWindow(time.Duration(cfg.ActiveWindowDays)*24*time.Hour),
			rollup.WithDifficultMinQuestions(cfg.DifficultMinQuestions),
			rollup.WithParallelism(cfg.RollupParallelism),
			rollup.WithMaxRangeDays(cfg.MaxRebuildDays),
		),
	}

	cleanup := func() {}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts,
			service.WithLocker(locker.Chain{
				locker.NewLocal(),
				locker.NewRedis(client, locker.WithTTL(cfg.LockTTL), locker.WithLogger(log.Named("locker"))),
			}),
			service.WithDeduper(dedupe.NewRedisDeduper(client, dedupe.WithRedisLogger(log.Named("dedupe")))),
		)
		cleanup = func() { _ = client.Close() }
		log.Info(ctx, "redis coordination enabled", logger.String("addr", cfg.RedisAddr))
	}

	return service.New(opts...), cleanup, nil
}

// withService builds a Service that is never started, runs fn and closes
// everything. One-shot commands act on the store directly.
func withService(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, svc *service.Service) error) error {
	svc, cleanup, err := buildService(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer cleanup()

	runErr := fn(ctx, svc)
	if err := svc.Stop(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
