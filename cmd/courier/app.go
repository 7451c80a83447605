package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/corvusHold/courier/internal/config"
	"github.com/corvusHold/courier/internal/dispatch"
	evsvc "github.com/corvusHold/courier/internal/events/service"
	"github.com/corvusHold/courier/internal/logger"
	"github.com/corvusHold/courier/internal/metrics"
	"github.com/corvusHold/courier/internal/platform/cache"
	srepo "github.com/corvusHold/courier/internal/settings/repository"
	ssvc "github.com/corvusHold/courier/internal/settings/service"
)

// app holds the process-wide resources shared by every command.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	pool  *pgxpool.Pool
	redis *redis.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.AppEnv)

	pgCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, withCode(exitConfig, fmt.Errorf("invalid DATABASE_URL: %w", err))
	}
	pool, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	return &app{cfg: cfg, log: log, pool: pool, redis: cache.NewClient(cfg)}, nil
}

func (a *app) Close() {
	_ = a.redis.Close()
	a.pool.Close()
}

func (a *app) dispatchDeps() dispatch.Deps {
	return dispatch.Deps{
		Config:    a.cfg,
		Pool:      a.pool,
		Redis:     a.redis,
		Settings:  ssvc.New(srepo.New(a.pool)),
		Publisher: evsvc.NewLogger(a.log),
		Logger:    a.log,
	}
}

// probe pings Postgres and Redis and records the outcome.
func (a *app) probe(ctx context.Context) (dbOK, cacheOK bool) {
	start := time.Now()
	dbOK = a.pool.Ping(ctx) == nil
	metrics.ObserveProbe("postgres", dbOK, time.Since(start).Seconds())

	start = time.Now()
	cacheOK = a.redis.Ping(ctx).Err() == nil
	metrics.ObserveProbe("redis", cacheOK, time.Since(start).Seconds())
	return dbOK, cacheOK
}
