package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/feeddrop/feeddrop/pkg/config"
	"github.com/feeddrop/feeddrop/pkg/logging"
)

var (
	// ErrCacheDisabled is returned when cache operations are attempted but
	// the shared cache is disabled
	ErrCacheDisabled = fmt.Errorf("cache is disabled")
)

// AvatarCache is an optional Redis-backed second-level avatar blob cache,
// shared between feeddrop processes pointed at the same mirror. All methods
// are nil-safe; a disabled cache behaves as a permanent miss.
type AvatarCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvatarCache creates a Redis avatar cache client. Returns (nil, nil)
// when the cache is disabled by configuration.
func NewAvatarCache(cfg *config.RedisConfig) (*AvatarCache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Shared avatar cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &AvatarCache{
		client: client,
		ttl:    cfg.TTL,
	}, nil
}

// Get retrieves an avatar blob from the shared cache
func (c *AvatarCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}
	return c.client.Get(ctx, namespaceKey(key)).Bytes()
}

// Set stores an avatar blob in the shared cache with the configured TTL
func (c *AvatarCache) Set(ctx context.Context, key string, val []byte) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Set(ctx, namespaceKey(key), val, c.ttl).Err()
}

// Delete removes an avatar blob from the shared cache
func (c *AvatarCache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, namespaceKey(key)).Err()
}

// Close closes the Redis connection
func (c *AvatarCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *AvatarCache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}

// namespaceKey prefixes keys so the cache can share a Redis with other apps
func namespaceKey(key string) string {
	return "feeddrop:avatar:" + key
}
