package shortener

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shortlink/analytics"
	"github.com/ceyewan/shortlink/base62"
	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/testkit"
	"github.com/ceyewan/shortlink/xerrors"
)

// seqGenerator 递增的测试 ID 生成器
type seqGenerator struct {
	next atomic.Int64
}

func (g *seqGenerator) Generate() (int64, error) {
	return g.next.Add(1) + 1000, nil
}

// recordingPublisher 把事件写入 channel，便于等待异步发布
type recordingPublisher struct {
	events chan analytics.ClickEvent
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(chan analytics.ClickEvent, 16)}
}

func (p *recordingPublisher) Publish(ctx context.Context, event analytics.ClickEvent) {
	p.events <- event
}

func (p *recordingPublisher) Close() error { return nil }

// panicPublisher 模拟发布链路崩溃
type panicPublisher struct{}

func (panicPublisher) Publish(context.Context, analytics.ClickEvent) { panic("broker exploded") }
func (panicPublisher) Close() error                                  { return nil }

func mustEncode(t *testing.T, n int64) string {
	t.Helper()
	code, err := base62.Encode(n)
	require.NoError(t, err)
	return code
}

func newTestService(t *testing.T, publisher analytics.Publisher) (*Service, *Repository, Cache) {
	t.Helper()

	repo, err := NewRepository(testkit.NewSQLiteDB(t), clog.Discard())
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate())

	cache, err := NewStandaloneCache(1000, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	svc, err := NewService(&Config{BaseURL: "http://sho.rt/"}, repo, cache, &seqGenerator{}, publisher, clog.Discard(), nil)
	require.NoError(t, err)

	return svc, repo, cache
}

func TestShorten(t *testing.T) {
	svc, repo, cache := newTestService(t, nil)
	ctx := context.Background()

	t.Run("creates mapping and caches it", func(t *testing.T) {
		result, err := svc.Shorten(ctx, "https://example.com/long/path")
		require.NoError(t, err)

		// 短码是 Snowflake ID 的 Base62 编码
		id, err := base62.Decode(result.Code)
		require.NoError(t, err)
		assert.Equal(t, "http://sho.rt/"+result.Code, result.ShortURL)
		assert.Equal(t, "https://example.com/long/path", result.OriginalURL)

		record, err := repo.FindByCode(ctx, result.Code)
		require.NoError(t, err)
		assert.Equal(t, id, record.ID)
		assert.Equal(t, "https://example.com/long/path", record.OriginalURL)

		cached, err := cache.Get(ctx, result.Code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/long/path", cached)
	})

	t.Run("same url twice yields distinct codes", func(t *testing.T) {
		r1, err := svc.Shorten(ctx, "https://example.com/")
		require.NoError(t, err)
		r2, err := svc.Shorten(ctx, "https://example.com/")
		require.NoError(t, err)
		assert.NotEqual(t, r1.Code, r2.Code)
	})

	t.Run("duplicate code returns collision", func(t *testing.T) {
		record := &ShortURL{ID: 424242, OriginalURL: "https://example.com/a", Code: mustEncode(t, 424242)}
		require.NoError(t, repo.Create(ctx, record))

		dup := &ShortURL{ID: 424242, OriginalURL: "https://example.com/b", Code: record.Code}
		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, ErrCodeCollision)
	})

	t.Run("rejects invalid urls", func(t *testing.T) {
		for _, raw := range []string{"", "not-a-url", "ftp://example.com/file", "https://", "://bad"} {
			_, err := svc.Shorten(ctx, raw)
			assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
		}
	})
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips database", func(t *testing.T) {
		svc, repo, _ := newTestService(t, nil)

		result, err := svc.Shorten(ctx, "https://example.com/cached")
		require.NoError(t, err)

		// 删除数据库记录：命中缓存时不应回源
		require.NoError(t, repo.db.Where("short_code = ?", result.Code).Delete(&ShortURL{}).Error)

		got, err := svc.Resolve(ctx, result.Code, ClickMeta{})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/cached", got)
	})

	t.Run("cache miss falls back and backfills", func(t *testing.T) {
		svc, repo, cache := newTestService(t, nil)

		record := &ShortURL{ID: 99999, OriginalURL: "https://example.com/db-only", Code: mustEncode(t, 99999)}
		require.NoError(t, repo.Create(ctx, record))

		got, err := svc.Resolve(ctx, record.Code, ClickMeta{})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/db-only", got)

		cached, err := cache.Get(ctx, record.Code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/db-only", cached)
	})

	t.Run("unknown code returns not found", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil)

		_, err := svc.Resolve(ctx, "zzzzzz", ClickMeta{})
		assert.True(t, xerrors.Is(err, ErrNotFound))
	})

	t.Run("publishes click event with request metadata", func(t *testing.T) {
		publisher := newRecordingPublisher()
		svc, _, _ := newTestService(t, publisher)

		result, err := svc.Shorten(ctx, "https://example.com/tracked")
		require.NoError(t, err)

		_, err = svc.Resolve(ctx, result.Code, ClickMeta{
			UserAgent: "test-agent",
			IPAddress: "192.0.2.1",
			Referrer:  "https://ref.example.com/",
		})
		require.NoError(t, err)

		select {
		case event := <-publisher.events:
			assert.Equal(t, result.Code, event.Code)
			assert.Equal(t, "https://example.com/tracked", event.OriginalURL)
			assert.Equal(t, "test-agent", event.UserAgent)
			assert.Equal(t, "192.0.2.1", event.IPAddress)
			assert.Equal(t, "https://ref.example.com/", event.Referrer)
			assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 5*time.Second)
		case <-time.After(2 * time.Second):
			t.Fatal("click event not published")
		}
	})

	t.Run("publisher panic does not affect redirect", func(t *testing.T) {
		svc, _, _ := newTestService(t, panicPublisher{})

		result, err := svc.Shorten(ctx, "https://example.com/fragile")
		require.NoError(t, err)

		got, err := svc.Resolve(ctx, result.Code, ClickMeta{})
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/fragile", got)
	})
}
