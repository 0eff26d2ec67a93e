package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// =============================================================================
// REDIS CACHE - Shared across server instances
// =============================================================================

const statsKeyPrefix = "stats:company:"

// Redis is a StatsCache backed by a Redis server, so invalidation from one
// engine instance is visible to all of them.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedis connects to Redis and pings it before returning.
func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, companyID string) ([]byte, error) {
	payload, err := r.rdb.Get(ctx, statsKeyPrefix+companyID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Redis) Set(ctx context.Context, companyID string, payload []byte) error {
	return r.rdb.Set(ctx, statsKeyPrefix+companyID, payload, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context, companyID string) error {
	return r.rdb.Del(ctx, statsKeyPrefix+companyID).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
