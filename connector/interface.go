// Package connector 为 shortlink 提供统一的连接管理能力。
//
// 核心特性：
//   - 统一抽象：通过 Connector 接口提供一致的连接管理 API
//   - 类型安全：通过 TypedConnector[T] 泛型接口确保编译时类型检查
//   - 多数据源支持：Redis、PostgreSQL、Etcd、RabbitMQ、ClickHouse
//   - 并发安全：所有公开方法均为并发安全
//   - 资源管理：遵循"谁创建，谁负责释放"原则，Close() 应在应用层调用
//
// 设计理念：
//   - 延迟连接：NewXXX() 创建连接器但不立即建立连接，Connect() 时才连接
//   - 幂等连接：Connect() 方法可安全重复调用
//   - 显式依赖注入：通过构造函数注入依赖，避免全局状态
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	组件（如 shortener、idgen）仅借用 Connector，不应调用 Close()。
//	应用层应按照 LIFO 顺序释放资源。
package connector

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 定义所有连接器的通用行为。
type Connector interface {
	// Connect 建立连接。
	//
	// 此方法是幂等的，可安全多次调用。连接过程阻塞直到成功或失败。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源。幂等。
	Close() error

	// HealthCheck 检查连接健康状态，并更新内部健康状态缓存。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回缓存的健康状态，无阻塞。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志和指标标识。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
//
// 类型参数 T 是客户端类型，如 *redis.Client、*gorm.DB 等。
// 在 Connect() 之前或 Close() 之后调用 GetClient() 可能返回零值。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例。
	GetClient() T
}

// RedisConnector Redis 连接器接口。
//
// 承载重定向缓存（short_url:{code}）与 WorkerID 租约（worker_id:lease:{n}）。
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// PostgreSQLConnector PostgreSQL 连接器接口。
//
// 基于 GORM，承载短链映射表（权威存储）。
type PostgreSQLConnector interface {
	TypedConnector[*gorm.DB]
}

// EtcdConnector Etcd 连接器接口。
//
// 可选的 WorkerID 租约后端。
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// RabbitMQConnector RabbitMQ 连接器接口。
//
// 承载点击事件总线。连接断开时在后台自动重连并重建 Channel；
// 断线期间 GetClient() 返回 nil，调用方应按"发布失败即丢弃"处理。
type RabbitMQConnector interface {
	TypedConnector[*amqp.Channel]
}

// ClickHouseConnector ClickHouse 连接器接口。
//
// 承载点击事件的列式存储，使用 HTTP 协议。
type ClickHouseConnector interface {
	TypedConnector[driver.Conn]
}
