package app

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/readiness-backend/internal/data/aggregates"
	"github.com/yungbote/readiness-backend/internal/data/cache"
	"github.com/yungbote/readiness-backend/internal/data/db"
	"github.com/yungbote/readiness-backend/internal/data/store"
	"github.com/yungbote/readiness-backend/internal/observability"
	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

// Storage groups the persistence handles the app owns.
type Storage struct {
	Store store.Store
	DB    *gorm.DB
	Redis *goredis.Client
	Cache cache.ResultCache
}

func wireStore(cfg Config, log *logger.Logger, metrics *observability.Metrics) (store.Store, *gorm.DB, error) {
	hooks := aggregates.NewObservabilityHooks(metrics)
	if cfg.Store.Driver == StoreMemory {
		log.Warn("Using in-memory assessment store; data is lost on restart")
		return store.NewMemoryStore(hooks), nil, nil
	}
	log.Info("Connecting assessment store...", "driver", cfg.Store.Driver)
	gdb, err := db.Open(cfg.dbConfig(), log)
	if err != nil {
		return nil, nil, err
	}
	if err := store.AutoMigrate(gdb); err != nil {
		_ = db.Close(gdb)
		return nil, nil, err
	}
	return store.NewGormStore(gdb, log, hooks, cfg.Store.Timeout), gdb, nil
}

// wireCache returns the redis results cache, or the no-op cache when no
// REDIS_ADDR is configured or redis is unreachable at startup.
func wireCache(ctx context.Context, cfg Config, log *logger.Logger) (cache.ResultCache, *goredis.Client) {
	if cfg.Redis.Addr == "" {
		log.Info("Results cache disabled (REDIS_ADDR not set)")
		return cache.Noop(), nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.redisConfig())
	if err != nil {
		log.Warn("Results cache unavailable; continuing without it", "error", err)
		return cache.Noop(), nil
	}
	rc, err := cache.NewRedisResultCache(log, rdb, cfg.redisConfig())
	if err != nil {
		_ = rdb.Close()
		log.Warn("Results cache init failed; continuing without it", "error", err)
		return cache.Noop(), nil
	}
	return rc, rdb
}

func wireStorage(ctx context.Context, cfg Config, log *logger.Logger, metrics *observability.Metrics) (Storage, error) {
	st, gdb, err := wireStore(cfg, log, metrics)
	if err != nil {
		return Storage{}, err
	}
	rc, rdb := wireCache(ctx, cfg, log)
	return Storage{Store: st, DB: gdb, Redis: rdb, Cache: rc}, nil
}

func (s Storage) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		_ = db.Close(s.DB)
	}
}
