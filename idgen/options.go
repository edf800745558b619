package idgen

import (
	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
)

// Option 组件初始化选项函数
type Option func(*Options)

// Options 组件初始化选项配置
type Options struct {
	Logger         clog.Logger
	RedisConnector connector.RedisConnector
	EtcdConnector  connector.EtcdConnector
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRedisConnector 设置 Redis 连接器 (Driver = "redis" 时必填)
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *Options) {
		o.RedisConnector = conn
	}
}

// WithEtcdConnector 设置 Etcd 连接器 (Driver = "etcd" 时必填)
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *Options) {
		o.EtcdConnector = conn
	}
}
