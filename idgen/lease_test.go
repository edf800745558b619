package idgen

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ceyewan/shortlink/testkit"
	"github.com/ceyewan/shortlink/xerrors"
)

// ========================================
// LeaseManager 配置单元测试
// ========================================

func TestNewLeaseManager_Unit(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewLeaseManager(nil)
		if err == nil {
			t.Error("Expected error for nil config")
		}
	})

	t.Run("nil redis connector returns error", func(t *testing.T) {
		_, err := NewLeaseManager(&LeaseConfig{Driver: "redis"})
		if err == nil {
			t.Error("Expected error for nil redis connector")
		}
	})

	t.Run("nil etcd connector returns error", func(t *testing.T) {
		_, err := NewLeaseManager(&LeaseConfig{Driver: "etcd"})
		if err == nil {
			t.Error("Expected error for nil etcd connector")
		}
	})

	t.Run("unsupported driver returns error", func(t *testing.T) {
		_, err := NewLeaseManager(&LeaseConfig{Driver: "zookeeper"})
		if err == nil {
			t.Error("Expected error for unsupported driver")
		}
	})

	t.Run("renew interval must be below ttl", func(t *testing.T) {
		cfg := &LeaseConfig{
			Driver:        "redis",
			TTL:           10 * time.Second,
			RenewInterval: 10 * time.Second,
		}
		if err := cfg.validate(); err == nil {
			t.Error("Expected error when renew interval >= ttl")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := &LeaseConfig{}
		if err := cfg.validate(); err != nil {
			t.Fatalf("validate: %v", err)
		}
		if cfg.KeyPrefix != "worker_id:lease" {
			t.Errorf("KeyPrefix = %q, want worker_id:lease", cfg.KeyPrefix)
		}
		if cfg.MaxID != 1024 {
			t.Errorf("MaxID = %d, want 1024", cfg.MaxID)
		}
		if cfg.TTL != 60*time.Second {
			t.Errorf("TTL = %v, want 60s", cfg.TTL)
		}
		if cfg.RenewInterval != 30*time.Second {
			t.Errorf("RenewInterval = %v, want 30s", cfg.RenewInterval)
		}
	})
}

// ========================================
// Redis 集成测试（需要本机 Redis）
// ========================================

func newTestLeaseConfig(prefix string) *LeaseConfig {
	return &LeaseConfig{
		Driver:        "redis",
		KeyPrefix:     prefix,
		MaxID:         4,
		TTL:           2 * time.Second,
		RenewInterval: 500 * time.Millisecond,
	}
}

func TestRedisLease_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)
	prefix := "test:lease:" + testkit.NewID()
	ctx := context.Background()

	t.Cleanup(func() {
		client := conn.GetClient()
		for i := 0; i < 4; i++ {
			client.Del(ctx, fmt.Sprintf("%s:%d", prefix, i))
		}
	})

	t.Run("acquires lowest free id", func(t *testing.T) {
		lm, err := NewLeaseManager(newTestLeaseConfig(prefix),
			WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
		if err != nil {
			t.Fatalf("NewLeaseManager: %v", err)
		}
		defer lm.Release(ctx)

		id, err := lm.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if id != 0 {
			t.Errorf("Acquire = %d, want 0", id)
		}
	})

	t.Run("two instances get distinct ids", func(t *testing.T) {
		lm1, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		lm2, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		defer lm1.Release(ctx)
		defer lm2.Release(ctx)

		id1, err := lm1.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire lm1: %v", err)
		}
		id2, err := lm2.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire lm2: %v", err)
		}
		if id1 == id2 {
			t.Errorf("both instances acquired worker id %d", id1)
		}
	})

	t.Run("exhausted pool returns error", func(t *testing.T) {
		var managers []LeaseManager
		defer func() {
			for _, lm := range managers {
				lm.Release(ctx)
			}
		}()

		for i := 0; i < 4; i++ {
			lm, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
			if _, err := lm.Acquire(ctx); err != nil {
				t.Fatalf("Acquire %d: %v", i, err)
			}
			managers = append(managers, lm)
		}

		lm, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		if _, err := lm.Acquire(ctx); !xerrors.Is(err, ErrWorkerIDExhausted) {
			t.Errorf("Acquire on full pool = %v, want ErrWorkerIDExhausted", err)
		}
	})

	t.Run("release frees the id", func(t *testing.T) {
		lm1, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		id1, err := lm1.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		if err := lm1.Release(ctx); err != nil {
			t.Fatalf("Release: %v", err)
		}

		lm2, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		defer lm2.Release(ctx)
		id2, err := lm2.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire after release: %v", err)
		}
		if id2 != id1 {
			t.Errorf("Acquire after release = %d, want %d", id2, id1)
		}
	})

	t.Run("renewal keeps lease beyond ttl", func(t *testing.T) {
		lm, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		defer lm.Release(ctx)

		id, err := lm.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		// 等待超过一个 TTL，续约应保持键存在
		time.Sleep(2500 * time.Millisecond)

		key := fmt.Sprintf("%s:%d", prefix, id)
		exists, err := conn.GetClient().Exists(ctx, key).Result()
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists != 1 {
			t.Error("lease key expired despite renewal")
		}
	})

	t.Run("expired key is reclaimed by holder", func(t *testing.T) {
		lm, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		defer lm.Release(ctx)

		id, err := lm.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		// 模拟键过期被清除：下一次续约应以原 sentinel 重新抢回
		key := fmt.Sprintf("%s:%d", prefix, id)
		if err := conn.GetClient().Del(ctx, key).Err(); err != nil {
			t.Fatalf("Del: %v", err)
		}

		// 等待两个续约周期
		time.Sleep(1200 * time.Millisecond)

		exists, err := conn.GetClient().Exists(ctx, key).Result()
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if exists != 1 {
			t.Error("lease key not reclaimed after expiry")
		}

		select {
		case err := <-lm.Lost():
			t.Errorf("Lost() signaled %v despite successful reclaim", err)
		default:
		}
	})

	t.Run("lost signal when key stolen", func(t *testing.T) {
		lm, _ := NewLeaseManager(newTestLeaseConfig(prefix), WithRedisConnector(conn))
		defer lm.Release(ctx)

		id, err := lm.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}

		// 模拟键被其他实例抢占
		key := fmt.Sprintf("%s:%d", prefix, id)
		if err := conn.GetClient().Set(ctx, key, "intruder", 10*time.Second).Err(); err != nil {
			t.Fatalf("Set: %v", err)
		}

		select {
		case err := <-lm.Lost():
			if !xerrors.Is(err, ErrLeaseLost) {
				t.Errorf("Lost() delivered %v, want ErrLeaseLost", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("Lost() not signaled after key stolen")
		}
	})
}
