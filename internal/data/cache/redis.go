package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/readiness-backend/internal/platform/logger"
)

const (
	defaultPrefix = "readiness:results:"
	defaultTTL    = 24 * time.Hour
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type RedisResultCache struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ResultCache = (*RedisResultCache)(nil)

// NewRedisClient dials and pings redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisResultCache(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) (*RedisResultCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisResultCache{
		log:    log.With("service", "RedisResultCache"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (c *RedisResultCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

func (c *RedisResultCache) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	raw, err := c.rdb.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Unreadable entries are dropped so the next read repopulates them.
		c.log.Warn("bad cached results payload", "assessment_id", id.String(), "error", err)
		_ = c.rdb.Del(ctx, c.key(id)).Err()
		return nil, ErrMiss
	}
	return &e, nil
}

func (c *RedisResultCache) Set(ctx context.Context, e *Entry) error {
	if e == nil || e.AssessmentID == uuid.Nil {
		return fmt.Errorf("cache entry requires an assessment id")
	}
	if e.CachedAt.IsZero() {
		e.CachedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(e.AssessmentID), raw, c.ttl).Err()
}

func (c *RedisResultCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(id)).Err()
}

func (c *RedisResultCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
