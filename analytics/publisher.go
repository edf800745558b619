package analytics

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/metrics"
	"github.com/ceyewan/shortlink/xerrors"
)

const (
	DefaultExchange = "url_shortener"
	DefaultQueue    = "click_events"
)

// Topology AMQP 拓扑参数：durable topic exchange，routing key 与队列同名
type Topology struct {
	Exchange string `yaml:"exchange" json:"exchange"`
	Queue    string `yaml:"queue" json:"queue"`
}

func (t *Topology) setDefaults() {
	if t.Exchange == "" {
		t.Exchange = DefaultExchange
	}
	if t.Queue == "" {
		t.Queue = DefaultQueue
	}
}

func (t Topology) routingKey() string {
	return t.Queue
}

// Publisher 点击事件发布器
//
// Publish 为 fire-and-forget 语义：任何失败只记录日志和指标，
// 绝不向调用方返回错误，点击采集失败不能影响重定向。
type Publisher interface {
	Publish(ctx context.Context, event ClickEvent)
	Close() error
}

type amqpPublisher struct {
	conn   connector.RabbitMQConnector
	topo   Topology
	logger clog.Logger

	published metrics.Counter
	dropped   metrics.Counter
}

// NewPublisher 创建 AMQP 点击事件发布器并声明拓扑
func NewPublisher(conn connector.RabbitMQConnector, topo Topology, logger clog.Logger, meter metrics.Meter) (Publisher, error) {
	if conn == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "rabbitmq_connector_required")
	}
	topo.setDefaults()
	if logger == nil {
		logger = clog.Discard()
	}
	if meter == nil {
		meter = metrics.Discard()
	}

	p := &amqpPublisher{
		conn:   conn,
		topo:   topo,
		logger: logger.With(clog.String("component", "analytics.publisher")),
	}

	var err error
	if p.published, err = meter.Counter("click_events_published_total", "Click events published to the broker"); err != nil {
		return nil, err
	}
	if p.dropped, err = meter.Counter("click_events_dropped_total", "Click events dropped before reaching the broker", "reason"); err != nil {
		return nil, err
	}

	if err := DeclareTopology(conn.GetClient(), topo); err != nil {
		return nil, err
	}

	return p, nil
}

// DeclareTopology 声明 exchange、queue 和绑定关系
// 发布端和消费端各自声明，先启动的一方生效，参数一致所以幂等
func DeclareTopology(ch *amqp.Channel, topo Topology) error {
	if ch == nil {
		return ErrChannelUnavailable
	}
	topo.setDefaults()

	if err := ch.ExchangeDeclare(topo.Exchange, "topic", true, false, false, false, nil); err != nil {
		return xerrors.Wrap(err, "declare exchange")
	}
	if _, err := ch.QueueDeclare(topo.Queue, true, false, false, false, nil); err != nil {
		return xerrors.Wrap(err, "declare queue")
	}
	if err := ch.QueueBind(topo.Queue, topo.routingKey(), topo.Exchange, false, nil); err != nil {
		return xerrors.Wrap(err, "bind queue")
	}
	return nil
}

// Publish 发布点击事件，失败只降级记录
func (p *amqpPublisher) Publish(ctx context.Context, event ClickEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		p.dropped.Inc(ctx, metrics.L("reason", "marshal"))
		p.logger.Warn("failed to marshal click event", clog.Error(err), clog.String("code", event.Code))
		return
	}

	ch := p.conn.GetClient()
	if ch == nil {
		p.dropped.Inc(ctx, metrics.L("reason", "channel_unavailable"))
		p.logger.Warn("click event dropped, amqp channel unavailable", clog.String("code", event.Code))
		return
	}

	err = ch.PublishWithContext(ctx, p.topo.Exchange, p.topo.routingKey(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		p.dropped.Inc(ctx, metrics.L("reason", "publish"))
		p.logger.Warn("failed to publish click event", clog.Error(err), clog.String("code", event.Code))
		return
	}

	p.published.Inc(ctx)
	p.logger.Debug("click event published", clog.String("code", event.Code))
}

// Close 关闭发布器，底层连接由 connector 统一管理
func (p *amqpPublisher) Close() error {
	return nil
}

// ========================================
// 空实现 (Analytics Disabled)
// ========================================

type nopPublisher struct{}

// NewNopPublisher 返回空发布器，用于未配置消息队列的部署
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, ClickEvent) {}
func (nopPublisher) Close() error                        { return nil }
