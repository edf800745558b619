package shortener

import (
	"time"

	"github.com/ceyewan/shortlink/xerrors"
)

// Config 短链接服务配置
type Config struct {
	// BaseURL 拼接短链接的基础地址，默认 "http://localhost:8000"
	BaseURL string `yaml:"base_url" json:"base_url"`

	// CacheTTL 缓存过期时间，默认 24h
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// CacheMode 缓存模式: "redis" | "standalone"，默认 "redis"
	CacheMode string `yaml:"cache_mode" json:"cache_mode"`

	// StandaloneCapacity 单机缓存容量，默认 100000
	StandaloneCapacity int `yaml:"standalone_capacity" json:"standalone_capacity"`
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.CacheMode == "" {
		c.CacheMode = "redis"
	}
	if c.StandaloneCapacity <= 0 {
		c.StandaloneCapacity = 100000
	}
}

func (c *Config) validate() error {
	c.setDefaults()
	if c.CacheMode != "redis" && c.CacheMode != "standalone" {
		return xerrors.WithCode(ErrInvalidInput, "unsupported_cache_mode")
	}
	return nil
}
