package connector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

type clickhouseConnector struct {
	cfg     *ClickHouseConfig
	conn    driver.Conn
	logger  clog.Logger
	healthy atomic.Bool
	mu      sync.RWMutex
}

// NewClickHouse 创建 ClickHouse 连接器（HTTP 协议）
func NewClickHouse(cfg *ClickHouseConfig, opts ...Option) (ClickHouseConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "clickhouse config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid clickhouse config")
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	c := &clickhouseConnector{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("connector", "clickhouse"), clog.String("name", cfg.Name)),
	}

	return c, nil
}

// Connect 建立连接
func (c *clickhouseConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	c.logger.Info("attempting to connect to clickhouse", clog.String("addr", addr))

	conn, err := clickhouse.Open(&clickhouse.Options{
		Protocol: clickhouse.HTTP,
		Addr:     []string{addr},
		Auth: clickhouse.Auth{
			Database: c.cfg.Database,
			Username: c.cfg.Username,
			Password: c.cfg.Password,
		},
		DialTimeout: c.cfg.DialTimeout,
	})
	if err != nil {
		c.logger.Error("failed to open clickhouse connection", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "clickhouse connector[%s]: %v", c.cfg.Name, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		c.logger.Error("failed to connect to clickhouse", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "clickhouse connector[%s]: ping failed: %v", c.cfg.Name, err)
	}

	c.conn = conn
	c.healthy.Store(true)
	c.logger.Info("successfully connected to clickhouse", clog.String("database", c.cfg.Database))

	return nil
}

// Close 关闭连接
func (c *clickhouseConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)

	if c.conn == nil {
		return nil
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Error("failed to close clickhouse connection", clog.Error(err))
		return err
	}

	c.conn = nil
	c.logger.Info("clickhouse connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *clickhouseConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "clickhouse connector[%s]", c.cfg.Name)
	}

	if err := conn.Ping(ctx); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("clickhouse health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "clickhouse connector[%s]: %v", c.cfg.Name, err)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *clickhouseConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *clickhouseConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 ClickHouse 原生连接
func (c *clickhouseConnector) GetClient() driver.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}
