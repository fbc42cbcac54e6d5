// Package cache provides a Redis-backed key-value cache with TTL support.
// It is used to memoize expensive external fetches. The cache is an
// optimization, never a correctness dependency: when no Redis URL is
// configured or the server is unreachable at startup, all operations
// become no-ops and callers degrade to live fetches.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pullsense/pullsense/pkg/logger"
)

const (
	// keyPrefix namespaces all cache keys to avoid collisions with the
	// broker and pub/sub keys sharing the same Redis instance
	keyPrefix = "pullsense:"

	// DefaultTTL is the default expiration for cached values (1 hour)
	DefaultTTL = time.Hour

	// connectTimeout bounds the startup ping
	connectTimeout = 3 * time.Second
)

// Cache defines cache operations. Get reports a hit via its boolean
// return; callers cannot distinguish a miss from a backend error.
type Cache interface {
	// Get loads the value stored under key into dest (JSON decode).
	// Returns false on miss, decode failure, or backend error.
	Get(ctx context.Context, key string, dest interface{}) bool

	// Set stores value under key with the given TTL (JSON encode).
	// Failures are logged and swallowed.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)

	// Delete removes the value stored under key.
	Delete(ctx context.Context, key string)
}

// redisCache implements Cache backed by Redis.
type redisCache struct {
	client *redis.Client
}

// noopCache implements Cache with no storage; every Get is a miss.
type noopCache struct{}

func (noopCache) Get(context.Context, string, interface{}) bool           { return false }
func (noopCache) Set(context.Context, string, interface{}, time.Duration) {}
func (noopCache) Delete(context.Context, string)                          {}

// NewNoop returns a Cache that stores nothing; every Get is a miss.
func NewNoop() Cache {
	return noopCache{}
}

// New creates a Cache from a Redis URL. An empty URL, an invalid URL, or
// an unreachable server yields a no-op cache rather than an error.
func New(redisURL string) Cache {
	if redisURL == "" {
		logger.Info("Cache disabled (no Redis URL configured)")
		return noopCache{}
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("Cache disabled (invalid Redis URL)", zap.Error(err))
		return noopCache{}
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Cache disabled (Redis not reachable)", zap.Error(err))
		return noopCache{}
	}

	logger.Info("Cache connected", zap.String("addr", opt.Addr))
	return &redisCache{client: client}
}

// NewWithClient creates a Cache from an existing Redis client.
// Primarily used by tests.
func NewWithClient(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		logger.Warn("Cache value decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Cache value encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		logger.Warn("Cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		logger.Warn("Cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
