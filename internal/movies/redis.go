package movies

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hatemosphere/movies-backend/internal/gziputil"
)

// Cmdable is the subset of redis commands the cache uses.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

var _ Cmdable = (*redis.Client)(nil)

// RedisConfig configures a shared cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache keeps gzip-compressed documents in redis so replicas share
// upstream responses.
type RedisCache struct {
	cmd    Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return newRedisCache(client, cfg.KeyPrefix, cfg.TTL), client, nil
}

func newRedisCache(cmd Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "movies:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{cmd: cmd, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.cmd.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("movie cache read failed", "key", key, "error", err)
		}
		recordLookup("redis", false)
		return nil, false
	}
	v, err := gziputil.Decompress(raw)
	if err != nil {
		slog.Warn("movie cache entry corrupt", "key", key, "error", err)
		recordLookup("redis", false)
		return nil, false
	}
	recordLookup("redis", true)
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	z, err := gziputil.Compress(value)
	if err != nil {
		slog.Warn("movie cache compress failed", "key", key, "error", err)
		return
	}
	if err := c.cmd.Set(ctx, c.prefix+key, z, c.ttl).Err(); err != nil {
		slog.Warn("movie cache write failed", "key", key, "error", err)
	}
}

// Ping checks redis reachability.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.cmd.Ping(ctx).Err()
}
