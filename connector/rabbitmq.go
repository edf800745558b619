package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

type rabbitmqConnector struct {
	cfg     *RabbitMQConfig
	logger  clog.Logger
	healthy atomic.Bool

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closing atomic.Bool
	done    chan struct{}
}

// NewRabbitMQ 创建 RabbitMQ 连接器
//
// 连接断开后会在后台以指数退避自动重连，期间 GetClient 返回 nil，
// 调用方需要容忍 nil 并在下一次调用时重试。
func NewRabbitMQ(cfg *RabbitMQConfig, opts ...Option) (RabbitMQConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "rabbitmq config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid rabbitmq config")
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	c := &rabbitmqConnector{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("connector", "rabbitmq"), clog.String("name", cfg.Name)),
		done:   make(chan struct{}),
	}

	return c, nil
}

// Connect 建立连接并启动断线监控
func (c *rabbitmqConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil && !c.conn.IsClosed() {
		return nil
	}

	c.logger.Info("attempting to connect to rabbitmq")

	if err := c.dialLocked(); err != nil {
		c.logger.Error("failed to connect to rabbitmq", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "rabbitmq connector[%s]: %v", c.cfg.Name, err)
	}

	c.healthy.Store(true)
	c.logger.Info("successfully connected to rabbitmq")

	go c.monitor(c.conn.NotifyClose(make(chan *amqp.Error, 1)))

	return nil
}

// dialLocked 建立连接并打开 channel，调用方需持有 c.mu
func (c *rabbitmqConnector) dialLocked() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.channel = channel
	return nil
}

// monitor 监听连接关闭事件并触发重连
func (c *rabbitmqConnector) monitor(closed chan *amqp.Error) {
	select {
	case <-c.done:
		return
	case err := <-closed:
		if c.closing.Load() {
			return
		}
		c.healthy.Store(false)
		c.mu.Lock()
		c.conn = nil
		c.channel = nil
		c.mu.Unlock()
		c.logger.Warn("rabbitmq connection lost, reconnecting", clog.Error(err))
		c.reconnect()
	}
}

// reconnect 指数退避重连，直到成功或连接器被关闭
func (c *rabbitmqConnector) reconnect() {
	backoff := c.cfg.ReconnectInitial
	for {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.mu.Lock()
		err := c.dialLocked()
		c.mu.Unlock()

		if err == nil {
			c.healthy.Store(true)
			c.logger.Info("rabbitmq reconnected")
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			go c.monitor(conn.NotifyClose(make(chan *amqp.Error, 1)))
			return
		}

		c.logger.Warn("rabbitmq reconnect failed", clog.Error(err), clog.Duration("backoff", backoff))
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// Close 关闭连接
func (c *rabbitmqConnector) Close() error {
	c.closing.Store(true)
	c.healthy.Store(false)
	close(c.done)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.conn.Close(); err != nil {
		c.logger.Error("failed to close rabbitmq connection", clog.Error(err))
		return err
	}

	c.conn = nil
	c.channel = nil
	c.logger.Info("rabbitmq connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *rabbitmqConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrHealthCheck, "rabbitmq connector[%s]: connection closed", c.cfg.Name)
	}

	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *rabbitmqConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *rabbitmqConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 AMQP channel，断线期间返回 nil
func (c *rabbitmqConnector) GetClient() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}
