package idgen

import (
	"context"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/xerrors"
)

// ========================================
// Etcd 实现
// ========================================

// etcdLease Etcd 实现的租约管理器
// 依赖 Etcd 原生 Lease + KeepAlive，租约失效时关联键自动删除
type etcdLease struct {
	client *clientv3.Client
	cfg    *LeaseConfig
	logger clog.Logger

	leaseID  clientv3.LeaseID
	workerID int64
	key      string

	stopCh chan struct{}
	lostCh chan error
}

func newEtcdLease(cfg *LeaseConfig, conn connector.EtcdConnector, logger clog.Logger) *etcdLease {
	return &etcdLease{
		client: conn.GetClient(),
		cfg:    cfg,
		logger: logger.With(clog.String("component", "idgen.lease"), clog.String("driver", "etcd")),
		stopCh: make(chan struct{}),
		lostCh: make(chan error, 1),
	}
}

// Acquire 线性扫描 [0, MaxID)，用事务 CAS 抢占第一个空闲 ID
func (l *etcdLease) Acquire(ctx context.Context) (int64, error) {
	lease, err := l.client.Grant(ctx, int64(l.cfg.TTL.Seconds()))
	if err != nil {
		l.logger.Error("etcd grant lease failed", clog.Error(err))
		return 0, xerrors.Wrap(err, "etcd_grant_failed")
	}

	for id := 0; id < l.cfg.MaxID; id++ {
		key := fmt.Sprintf("%s:%d", l.cfg.KeyPrefix, id)

		// 仅当键不存在 (CreateRevision == 0) 时创建
		resp, err := l.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, "held", clientv3.WithLease(lease.ID))).
			Commit()
		if err != nil {
			l.revoke(lease.ID)
			l.logger.Error("etcd txn failed", clog.Error(err), clog.String("key", key))
			return 0, xerrors.Wrap(err, "etcd_txn_failed")
		}

		if !resp.Succeeded {
			continue
		}

		l.leaseID = lease.ID
		l.workerID = int64(id)
		l.key = key
		l.logger.Info("worker id acquired",
			clog.Int64("worker_id", l.workerID),
			clog.String("key", key),
			clog.Int64("lease_id", int64(lease.ID)),
		)

		go l.keepAlive()

		return l.workerID, nil
	}

	l.revoke(lease.ID)
	return 0, xerrors.WithCode(ErrWorkerIDExhausted, "no_available_worker_id")
}

// keepAlive 消费 KeepAlive 响应，通道关闭即视为租约丢失
func (l *etcdLease) keepAlive() {
	kaCh, err := l.client.KeepAlive(context.Background(), l.leaseID)
	if err != nil {
		l.lose(xerrors.Wrap(err, "keep_alive_failed"))
		return
	}

	for {
		select {
		case <-l.stopCh:
			return
		case ka, ok := <-kaCh:
			if !ok || ka == nil {
				l.lose(xerrors.WithCode(ErrLeaseLost, "lease_expired"))
				return
			}
		}
	}
}

func (l *etcdLease) lose(err error) {
	l.logger.Error("worker id lease lost",
		clog.Error(err),
		clog.Int64("worker_id", l.workerID),
	)
	select {
	case l.lostCh <- err:
	default:
	}
}

func (l *etcdLease) revoke(id clientv3.LeaseID) {
	if _, err := l.client.Revoke(context.Background(), id); err != nil {
		l.logger.Warn("etcd revoke lease failed", clog.Error(err))
	}
}

// Lost 返回租约丢失通知通道
func (l *etcdLease) Lost() <-chan error {
	return l.lostCh
}

// Release 停止续约并撤销租约，关联键自动删除
func (l *etcdLease) Release(ctx context.Context) error {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}

	if l.leaseID == 0 {
		return nil
	}

	if _, err := l.client.Revoke(ctx, l.leaseID); err != nil {
		l.logger.Warn("lease revoke failed, key will expire by ttl", clog.Error(err))
		return xerrors.Wrap(err, "etcd_revoke_failed")
	}

	l.logger.Info("worker id released",
		clog.Int64("worker_id", l.workerID),
		clog.String("key", l.key),
	)
	return nil
}
