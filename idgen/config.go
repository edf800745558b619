package idgen

import (
	"time"

	"github.com/ceyewan/shortlink/xerrors"
)

// ========================================
// 配置结构 (Configuration)
// ========================================

// GeneratorConfig ID 生成器配置 (Snowflake)
type GeneratorConfig struct {
	// WorkerID 工作节点 ID [0, 1023]
	WorkerID int64 `yaml:"worker_id" json:"worker_id"`
}

func (c *GeneratorConfig) validate() error {
	if c.WorkerID < 0 || c.WorkerID > maxWorkerID {
		return xerrors.WithCode(ErrInvalidInput, "worker_id_out_of_range")
	}
	return nil
}

// ========================================

// LeaseConfig WorkerID 租约配置
type LeaseConfig struct {
	// Driver 后端类型: "redis" | "etcd"，默认 "redis"
	Driver string `yaml:"driver" json:"driver"`

	// KeyPrefix 键前缀，默认 "worker_id:lease"
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// MaxID 最大 ID 范围 [0, maxID)，默认 1024
	MaxID int `yaml:"max_id" json:"max_id"`

	// TTL 租约有效期，默认 60s
	TTL time.Duration `yaml:"ttl" json:"ttl"`

	// RenewInterval 续约周期，默认 TTL/2
	RenewInterval time.Duration `yaml:"renew_interval" json:"renew_interval"`
}

func (c *LeaseConfig) setDefaults() {
	if c.Driver == "" {
		c.Driver = "redis"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "worker_id:lease"
	}
	if c.MaxID <= 0 {
		c.MaxID = 1024
	}
	if c.TTL <= 0 {
		c.TTL = 60 * time.Second
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = c.TTL / 2
	}
}

func (c *LeaseConfig) validate() error {
	c.setDefaults()
	if c.Driver != "redis" && c.Driver != "etcd" {
		return xerrors.WithCode(ErrInvalidInput, "unsupported_driver")
	}
	if int64(c.MaxID) > maxWorkerID+1 {
		return xerrors.WithCode(ErrInvalidInput, "max_id_out_of_range")
	}
	if c.RenewInterval >= c.TTL {
		return xerrors.WithCode(ErrInvalidInput, "renew_interval_exceeds_ttl")
	}
	return nil
}
