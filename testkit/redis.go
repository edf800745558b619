package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/shortlink/connector"
)

// NewRedisConfig 返回 Redis 测试配置
// 默认连接 localhost:6379 DB 1，避免与默认的 DB 0 冲突
func NewRedisConfig() *connector.RedisConfig {
	return &connector.RedisConfig{
		Name:        "test-redis",
		URL:         "redis://localhost:6379/1",
		DialTimeout: 2 * time.Second,
	}
}

// NewRedisConnector 获取 Redis 连接器
// 本机没有可用 Redis 时跳过测试，生命周期由 t.Cleanup 管理
func NewRedisConnector(t *testing.T) connector.RedisConnector {
	t.Helper()

	conn, err := connector.NewRedis(NewRedisConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create redis connector: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("redis not available at localhost:6379, skipping: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// NewRedisClient 获取原生 Redis 客户端
func NewRedisClient(t *testing.T) *redis.Client {
	return NewRedisConnector(t).GetClient()
}
