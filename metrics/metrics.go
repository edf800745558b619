// Package metrics 提供基于 Prometheus 的轻量指标组件。
//
// Meter 负责创建命名指标，组件通过注入的 Meter 记录计数。
// Discard() 返回空实现，用于测试或显式关闭指标。
//
// 基本使用：
//
//	meter, _ := metrics.New("shortlink")
//	counter, _ := meter.Counter("redirects_total", "Total redirects served", "source")
//	counter.Inc(ctx, metrics.L("source", "cache"))
//
//	// 暴露 /metrics
//	router.GET("/metrics", gin.WrapH(meter.Handler()))
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/shortlink/xerrors"
)

// Label 指标标签键值对
type Label struct {
	Key   string
	Value string
}

// L 创建标签
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Counter 单调递增计数器
type Counter interface {
	// Inc 计数加一
	Inc(ctx context.Context, labels ...Label)

	// Add 计数增加 delta（必须非负）
	Add(ctx context.Context, delta float64, labels ...Label)
}

// Meter 指标工厂
//
// 同名指标重复创建返回同一实例。
type Meter interface {
	// Counter 创建计数器，labelNames 声明允许的标签键
	Counter(name, help string, labelNames ...string) (Counter, error)

	// Handler 返回 Prometheus 文本格式的 HTTP Handler
	Handler() http.Handler
}

// promMeter 是 Meter 的 Prometheus 实现
type promMeter struct {
	namespace string
	registry  *prometheus.Registry
}

// New 创建 Meter，namespace 作为所有指标的前缀
func New(namespace string) (Meter, error) {
	if namespace == "" {
		return nil, xerrors.New("metrics: namespace is empty")
	}
	return &promMeter{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}, nil
}

func (m *promMeter) Counter(name, help string, labelNames ...string) (Counter, error) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      name,
		Help:      help,
	}, labelNames)

	if err := m.registry.Register(vec); err != nil {
		// 同名指标已注册时复用现有实例
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, xerrors.Wrapf(err, "metrics: register counter %s", name)
		}
	}

	return &promCounter{vec: vec}, nil
}

func (m *promMeter) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type promCounter struct {
	vec *prometheus.CounterVec
}

func labelsToPrometheus(labels []Label) prometheus.Labels {
	pl := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		pl[l.Key] = l.Value
	}
	return pl
}

func (c *promCounter) Inc(ctx context.Context, labels ...Label) {
	c.vec.With(labelsToPrometheus(labels)).Inc()
}

func (c *promCounter) Add(ctx context.Context, delta float64, labels ...Label) {
	c.vec.With(labelsToPrometheus(labels)).Add(delta)
}

// ========================================
// Discard 实现
// ========================================

// Discard 返回丢弃所有指标的 Meter
func Discard() Meter {
	return discardMeter{}
}

type discardMeter struct{}

func (discardMeter) Counter(string, string, ...string) (Counter, error) {
	return discardCounter{}, nil
}

func (discardMeter) Handler() http.Handler {
	return http.NotFoundHandler()
}

type discardCounter struct{}

func (discardCounter) Inc(context.Context, ...Label)          {}
func (discardCounter) Add(context.Context, float64, ...Label) {}
