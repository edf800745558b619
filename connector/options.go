package connector

import "github.com/ceyewan/shortlink/clog"

// Option 连接器可选参数
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 注入日志器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// applyDefaults 填充缺省依赖
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
}
