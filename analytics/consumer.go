package analytics

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/metrics"
	"github.com/ceyewan/shortlink/xerrors"
)

// EventSink 事件落库接口，生产实现为 ClickHouse Sink
type EventSink interface {
	Insert(ctx context.Context, event ClickEvent) error
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	// Topology AMQP 拓扑，与发布端一致
	Topology Topology `yaml:"topology" json:"topology"`

	// PrefetchCount 每个消费者未确认消息上限，默认 16
	PrefetchCount int `yaml:"prefetch_count" json:"prefetch_count"`

	// RetryInterval channel 不可用时的重试间隔，默认 3s
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
}

func (c *ConsumerConfig) setDefaults() {
	c.Topology.setDefaults()
	if c.PrefetchCount <= 0 {
		c.PrefetchCount = 16
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 3 * time.Second
	}
}

// Consumer 点击事件消费者
//
// 手动确认模式，at-least-once 语义：
//   - 落库成功 -> Ack
//   - JSON 解码失败 -> Nack(requeue=false)，毒消息不重试
//   - 落库失败 -> Nack(requeue=true)，等待重投
type Consumer struct {
	conn   connector.RabbitMQConnector
	sink   EventSink
	cfg    *ConsumerConfig
	logger clog.Logger

	processed metrics.Counter
	rejected  metrics.Counter
}

// NewConsumer 创建消费者
func NewConsumer(conn connector.RabbitMQConnector, sink EventSink, cfg *ConsumerConfig, logger clog.Logger, meter metrics.Meter) (*Consumer, error) {
	if conn == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "rabbitmq_connector_required")
	}
	if sink == nil {
		return nil, xerrors.WithCode(ErrInvalidSink, "sink_required")
	}
	if cfg == nil {
		cfg = &ConsumerConfig{}
	}
	cfg.setDefaults()
	if logger == nil {
		logger = clog.Discard()
	}
	if meter == nil {
		meter = metrics.Discard()
	}

	c := &Consumer{
		conn:   conn,
		sink:   sink,
		cfg:    cfg,
		logger: logger.With(clog.String("component", "analytics.consumer")),
	}

	var err error
	if c.processed, err = meter.Counter("click_events_consumed_total", "Click events written to clickhouse"); err != nil {
		return nil, err
	}
	if c.rejected, err = meter.Counter("click_events_rejected_total", "Click events rejected by the consumer", "reason"); err != nil {
		return nil, err
	}

	return c, nil
}

// Run 阻塞消费，直到 ctx 取消
// channel 断开后等待连接器重连并重新订阅
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		ch := c.conn.GetClient()
		if ch == nil {
			c.logger.Warn("amqp channel unavailable, waiting for reconnect")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.RetryInterval):
			}
			continue
		}

		if err := c.consumeOnce(ctx, ch); err != nil {
			c.logger.Warn("consume loop interrupted, will resubscribe", clog.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.RetryInterval):
			}
		}
	}
}

// consumeOnce 在单个 channel 上订阅并处理消息，channel 失效时返回
func (c *Consumer) consumeOnce(ctx context.Context, ch *amqp.Channel) error {
	if err := DeclareTopology(ch, c.cfg.Topology); err != nil {
		return err
	}

	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		return xerrors.Wrap(err, "set qos")
	}

	deliveries, err := ch.Consume(c.cfg.Topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return xerrors.Wrap(err, "start consume")
	}

	c.logger.Info("consuming click events", clog.String("queue", c.cfg.Topology.Queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return xerrors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle 处理单条消息并决定确认方式
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var event ClickEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.rejected.Inc(ctx, metrics.L("reason", "decode"))
		c.logger.Error("failed to decode click event, discarding",
			clog.Error(err),
			clog.String("body", string(d.Body)),
		)
		// 毒消息：重投不会成功，丢弃（配置了 DLQ 时进入死信）
		if err := d.Nack(false, false); err != nil {
			c.logger.Warn("nack failed", clog.Error(err))
		}
		return
	}

	if err := c.sink.Insert(ctx, event); err != nil {
		c.rejected.Inc(ctx, metrics.L("reason", "insert"))
		c.logger.Error("failed to insert click event, requeueing",
			clog.Error(err),
			clog.String("code", event.Code),
		)
		if err := d.Nack(false, true); err != nil {
			c.logger.Warn("nack failed", clog.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Warn("ack failed", clog.Error(err))
		return
	}

	c.processed.Inc(ctx)
	c.logger.Debug("click event processed", clog.String("code", event.Code))
}
