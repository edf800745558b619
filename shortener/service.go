// Package shortener 实现短链接的生成与解析。
//
// Shorten 为长链接分配 Snowflake ID，将其 Base62 编码作为短码，
// 映射同时写入 PostgreSQL 与缓存。Resolve 按缓存优先、数据库回填
// 的顺序解析短码，并异步发布点击事件。
package shortener

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ceyewan/shortlink/analytics"
	"github.com/ceyewan/shortlink/base62"
	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/metrics"
	"github.com/ceyewan/shortlink/xerrors"
)

// Generator ID 生成接口，生产实现为 *idgen.Snowflake
type Generator interface {
	Generate() (int64, error)
}

// ShortenResult Shorten 的返回结果
type ShortenResult struct {
	Code        string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
}

// ClickMeta 一次跳转请求携带的客户端信息
type ClickMeta struct {
	UserAgent string
	IPAddress string
	Referrer  string
}

// Service 短链接核心服务
type Service struct {
	cfg       *Config
	repo      *Repository
	cache     Cache
	gen       Generator
	publisher analytics.Publisher
	logger    clog.Logger

	shortens  metrics.Counter
	redirects metrics.Counter
}

// NewService 创建短链接服务
func NewService(cfg *Config, repo *Repository, cache Cache, gen Generator, publisher analytics.Publisher, logger clog.Logger, meter metrics.Meter) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "repository_required")
	}
	if cache == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "cache_required")
	}
	if gen == nil {
		return nil, xerrors.WithCode(ErrInvalidInput, "generator_required")
	}
	if publisher == nil {
		publisher = analytics.NewNopPublisher()
	}
	if logger == nil {
		logger = clog.Discard()
	}
	if meter == nil {
		meter = metrics.Discard()
	}

	s := &Service{
		cfg:       cfg,
		repo:      repo,
		cache:     cache,
		gen:       gen,
		publisher: publisher,
		logger:    logger.With(clog.String("component", "shortener.service")),
	}

	var err error
	if s.shortens, err = meter.Counter("shorten_total", "Short URLs created"); err != nil {
		return nil, err
	}
	if s.redirects, err = meter.Counter("redirect_total", "Redirects served", "source"); err != nil {
		return nil, err
	}

	return s, nil
}

// Shorten 为原始 URL 生成短链接
//
// 缓存写入失败只降级记录，映射以数据库为准。
func (s *Service) Shorten(ctx context.Context, originalURL string) (*ShortenResult, error) {
	if err := validateURL(originalURL); err != nil {
		return nil, err
	}

	id, err := s.gen.Generate()
	if err != nil {
		return nil, err
	}
	code, err := base62.Encode(id)
	if err != nil {
		return nil, err
	}

	record := &ShortURL{
		ID:          id,
		OriginalURL: originalURL,
		Code:        code,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, code, originalURL); err != nil {
		s.logger.Warn("cache set failed after shorten", clog.Error(err), clog.String("code", code))
	}

	s.shortens.Inc(ctx)
	s.logger.Info("short url created",
		clog.Int64("id", id),
		clog.String("code", code),
	)

	return &ShortenResult{
		Code:        code,
		ShortURL:    strings.TrimRight(s.cfg.BaseURL, "/") + "/" + code,
		OriginalURL: originalURL,
	}, nil
}

// Resolve 解析短码，返回原始 URL
//
// 缓存优先；未命中时回源数据库并回填缓存。
// 解析成功后异步发布点击事件，任何采集失败都不影响返回。
func (s *Service) Resolve(ctx context.Context, code string, meta ClickMeta) (string, error) {
	originalURL, err := s.cache.Get(ctx, code)
	if err == nil {
		s.redirects.Inc(ctx, metrics.L("source", "cache"))
		s.publishClick(code, originalURL, meta)
		return originalURL, nil
	}
	if !xerrors.Is(err, ErrCacheMiss) {
		// 缓存故障降级为直接回源
		s.logger.Warn("cache lookup failed, falling back to database",
			clog.Error(err),
			clog.String("code", code),
		)
	}

	record, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return "", err
	}
	originalURL = record.OriginalURL

	if err := s.cache.Set(ctx, code, originalURL); err != nil {
		s.logger.Warn("cache backfill failed", clog.Error(err), clog.String("code", code))
	}

	s.redirects.Inc(ctx, metrics.L("source", "database"))
	s.publishClick(code, originalURL, meta)
	return originalURL, nil
}

// publishClick 异步发布点击事件
// 独立 goroutine + 新 context，发布耗时和失败都不影响重定向路径
func (s *Service) publishClick(code, originalURL string, meta ClickMeta) {
	event := analytics.ClickEvent{
		Code:        code,
		Timestamp:   time.Now().UTC(),
		UserAgent:   meta.UserAgent,
		IPAddress:   meta.IPAddress,
		Referrer:    meta.Referrer,
		OriginalURL: originalURL,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("click publish panicked", clog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.publisher.Publish(ctx, event)
	}()
}

// validateURL 校验原始 URL：必须是带 host 的 http/https 绝对地址
func validateURL(raw string) error {
	if raw == "" {
		return xerrors.Wrap(ErrInvalidURL, "empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return xerrors.Wrapf(ErrInvalidURL, "parse: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return xerrors.Wrapf(ErrInvalidURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return xerrors.Wrap(ErrInvalidURL, "missing host")
	}
	return nil
}
