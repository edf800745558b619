package shortener

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/xerrors"
)

// cacheKeyPrefix Redis 键前缀，完整键形如 "short_url:{code}"
const cacheKeyPrefix = "short_url:"

// Cache 短码到原始 URL 的缓存
type Cache interface {
	// Get 查询缓存，未命中返回 ErrCacheMiss
	Get(ctx context.Context, code string) (string, error)

	// Set 写入缓存
	Set(ctx context.Context, code, originalURL string) error

	Close() error
}

// ========================================
// Redis 实现（多实例部署）
// ========================================

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger clog.Logger
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(conn connector.RedisConnector, ttl time.Duration, logger clog.Logger) (Cache, error) {
	if conn == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "redis_connector_required")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	return &redisCache{
		client: conn.GetClient(),
		ttl:    ttl,
		logger: logger.With(clog.String("component", "shortener.cache"), clog.String("mode", "redis")),
	}, nil
}

func (c *redisCache) Get(ctx context.Context, code string) (string, error) {
	val, err := c.client.Get(ctx, cacheKeyPrefix+code).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", xerrors.Wrap(err, "cache get")
	}
	return val, nil
}

func (c *redisCache) Set(ctx context.Context, code, originalURL string) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+code, originalURL, c.ttl).Err(); err != nil {
		return xerrors.Wrap(err, "cache set")
	}
	return nil
}

func (c *redisCache) Close() error {
	// 底层连接由 connector 统一管理
	return nil
}

// ========================================
// 单机内存实现（本地开发/单实例部署）
// ========================================

type standaloneCache struct {
	cache *otter.Cache[string, string]
}

// NewStandaloneCache 创建 Otter 内存缓存
// 写入过期策略与 Redis TTL 语义一致：读取不重置过期时间
func NewStandaloneCache(capacity int, ttl time.Duration) (Cache, error) {
	if capacity <= 0 {
		capacity = 100000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cache, err := otter.New(&otter.Options[string, string]{
		MaximumSize:      capacity,
		ExpiryCalculator: otter.ExpiryWriting[string, string](ttl),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "build otter cache")
	}
	return &standaloneCache{cache: cache}, nil
}

func (c *standaloneCache) Get(ctx context.Context, code string) (string, error) {
	val, ok := c.cache.GetIfPresent(code)
	if !ok {
		return "", ErrCacheMiss
	}
	return val, nil
}

func (c *standaloneCache) Set(ctx context.Context, code, originalURL string) error {
	c.cache.Set(code, originalURL)
	return nil
}

func (c *standaloneCache) Close() error {
	c.cache.StopAllGoroutines()
	return nil
}
