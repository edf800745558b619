package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/xerrors"
)

// ========================================
// LeaseManager 接口 (WorkerID Lease)
// ========================================

// LeaseManager WorkerID 租约管理器
//
// 进程启动时调用 Acquire 抢占一个集群内互斥的 WorkerID，
// 后台自动续约。租约无法维持时 Lost 通道收到 ErrLeaseLost，
// 此时必须停止生成 ID 并退出进程，否则会产生重复 ID。
type LeaseManager interface {
	// Acquire 抢占一个可用的 WorkerID
	Acquire(ctx context.Context) (int64, error)

	// Lost 返回租约丢失通知通道，最多投递一次
	Lost() <-chan error

	// Release 停止续约并主动释放 WorkerID
	Release(ctx context.Context) error
}

// NewLeaseManager 创建 WorkerID 租约管理器
// 根据 cfg.Driver 选择 redis 或 etcd 实现
//
// 使用示例:
//
//	lm, _ := idgen.NewLeaseManager(&idgen.LeaseConfig{Driver: "redis"},
//	    idgen.WithRedisConnector(redisConn))
//
//	workerID, _ := lm.Acquire(ctx)
//	defer lm.Release(context.Background())
//
//	go func() {
//	    if err := <-lm.Lost(); err != nil {
//	        // 租约丢失，必须停止生成并退出
//	    }
//	}()
func NewLeaseManager(cfg *LeaseConfig, opts ...Option) (LeaseManager, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "config_nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := Options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = clog.Discard()
	}

	switch cfg.Driver {
	case "redis":
		if opt.RedisConnector == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		return newRedisLease(cfg, opt.RedisConnector, opt.Logger), nil

	case "etcd":
		if opt.EtcdConnector == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "etcd_connector_required")
		}
		return newEtcdLease(cfg, opt.EtcdConnector, opt.Logger), nil

	default:
		return nil, xerrors.WithCode(ErrInvalidInput, "unsupported_driver")
	}
}

// ========================================
// Redis 实现
// ========================================

// redisLease Redis 实现的租约管理器
//
// 键格式 "{prefix}:{n}"，值为实例唯一的 sentinel，
// 保证只有持有者能续约/删除自己的键。
type redisLease struct {
	conn   connector.RedisConnector
	cfg    *LeaseConfig
	logger clog.Logger

	workerID int64
	key      string
	sentinel string

	stopCh chan struct{}
	lostCh chan error
}

// 仅当值匹配时删除，避免误删其他实例重新抢占的键
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`

// 仅当仍持有键时续约: 1 续约成功, 0 键已消失, -1 键被他人占用
const renewScript = `
	local v = redis.call("GET", KEYS[1])
	if v == ARGV[1] then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
		return 1
	elseif v == false then
		return 0
	else
		return -1
	end
`

func newRedisLease(cfg *LeaseConfig, conn connector.RedisConnector, logger clog.Logger) *redisLease {
	return &redisLease{
		conn:     conn,
		cfg:      cfg,
		logger:   logger.With(clog.String("component", "idgen.lease"), clog.String("driver", "redis")),
		sentinel: uuid.NewString(),
		stopCh:   make(chan struct{}),
		lostCh:   make(chan error, 1),
	}
}

// Acquire 线性扫描 [0, MaxID)，用 SET NX EX 抢占第一个空闲 ID
func (l *redisLease) Acquire(ctx context.Context) (int64, error) {
	client := l.conn.GetClient()

	for id := 0; id < l.cfg.MaxID; id++ {
		key := fmt.Sprintf("%s:%d", l.cfg.KeyPrefix, id)

		ok, err := client.SetNX(ctx, key, l.sentinel, l.cfg.TTL).Result()
		if err != nil {
			l.logger.Error("lease acquire failed", clog.Error(err), clog.String("key", key))
			return 0, xerrors.Wrap(err, "redis_setnx_failed")
		}
		if !ok {
			continue
		}

		l.workerID = int64(id)
		l.key = key
		l.logger.Info("worker id acquired",
			clog.Int64("worker_id", l.workerID),
			clog.String("key", key),
		)

		go l.renewLoop()

		return l.workerID, nil
	}

	return 0, xerrors.WithCode(ErrWorkerIDExhausted, "no_available_worker_id")
}

// renewLoop 周期续约，直到 Release 或租约丢失
func (l *redisLease) renewLoop() {
	ticker := time.NewTicker(l.cfg.RenewInterval)
	defer ticker.Stop()

	client := l.conn.GetClient()
	lastRenewed := time.Now()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.RenewInterval/2)
		result, err := client.Eval(ctx, renewScript,
			[]string{l.key}, l.sentinel, l.cfg.TTL.Milliseconds()).Int64()
		cancel()

		if err != nil {
			// 传输层错误：在 TTL 窗口内继续重试，超出则按丢失处理
			l.logger.Warn("lease renew failed, will retry",
				clog.Error(err),
				clog.String("key", l.key),
			)
			if time.Since(lastRenewed) > l.cfg.TTL {
				l.lose(xerrors.Wrap(ErrLeaseLost, "renew window exceeded ttl"))
				return
			}
			continue
		}

		switch result {
		case 1:
			lastRenewed = time.Now()

		case 0:
			// 键已过期被清除，尝试用原 sentinel 重新抢回
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.RenewInterval/2)
			reclaimed, err := client.SetNX(ctx, l.key, l.sentinel, l.cfg.TTL).Result()
			cancel()

			if err == nil && reclaimed {
				l.logger.Warn("lease key expired but reclaimed", clog.String("key", l.key))
				lastRenewed = time.Now()
				continue
			}

			l.lose(xerrors.WithCode(ErrLeaseLost, "lease_expired"))
			return

		default:
			// 键被其他实例持有，立即让位
			l.lose(xerrors.WithCode(ErrLeaseLost, "lease_taken_by_other"))
			return
		}
	}
}

func (l *redisLease) lose(err error) {
	l.logger.Error("worker id lease lost",
		clog.Error(err),
		clog.Int64("worker_id", l.workerID),
	)
	select {
	case l.lostCh <- err:
	default:
	}
}

// Lost 返回租约丢失通知通道
func (l *redisLease) Lost() <-chan error {
	return l.lostCh
}

// Release 停止续约并删除自己的键
func (l *redisLease) Release(ctx context.Context) error {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}

	if l.key == "" {
		return nil
	}

	client := l.conn.GetClient()
	if err := client.Eval(ctx, releaseScript, []string{l.key}, l.sentinel).Err(); err != nil && err != redis.Nil {
		l.logger.Warn("lease release failed, key will expire by ttl", clog.Error(err))
		return xerrors.Wrap(err, "redis_release_failed")
	}

	l.logger.Info("worker id released",
		clog.Int64("worker_id", l.workerID),
		clog.String("key", l.key),
	)
	return nil
}
