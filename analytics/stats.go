package analytics

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/xerrors"
)

// URLStats 单个短码的聚合统计
type URLStats struct {
	Code           string          `json:"code"`
	TotalClicks    uint64          `json:"total_clicks"`
	UniqueVisitors uint64          `json:"unique_visitors"`
	LastClicked    *time.Time      `json:"last_clicked"`
	ClicksByDay    []DailyClicks   `json:"clicks_by_day"`
	TopReferrers   []ReferrerCount `json:"top_referrers"`
}

// DailyClicks 单日点击量
type DailyClicks struct {
	Date   string `json:"date"`
	Clicks uint64 `json:"clicks"`
}

// ReferrerCount 来源站点点击量
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Clicks   uint64 `json:"clicks"`
}

// StatsService 聚合统计查询服务
type StatsService struct {
	conn   driver.Conn
	logger clog.Logger
}

// NewStatsService 创建统计查询服务
func NewStatsService(ch connector.ClickHouseConnector, logger clog.Logger) (*StatsService, error) {
	if ch == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "clickhouse_connector_required")
	}
	if logger == nil {
		logger = clog.Discard()
	}

	return &StatsService{
		conn:   ch.GetClient(),
		logger: logger.With(clog.String("component", "analytics.stats")),
	}, nil
}

// GetStats 查询指定短码的聚合统计
// 没有任何点击记录时返回 ErrNoData
func (s *StatsService) GetStats(ctx context.Context, code string) (*URLStats, error) {
	stats := &URLStats{
		Code:         code,
		ClicksByDay:  []DailyClicks{},
		TopReferrers: []ReferrerCount{},
	}

	row := s.conn.QueryRow(ctx, `
		SELECT count(), uniqExact(ip_address), max(timestamp)
		FROM click_events
		WHERE code = ?
	`, code)

	var lastClicked time.Time
	if err := row.Scan(&stats.TotalClicks, &stats.UniqueVisitors, &lastClicked); err != nil {
		s.logger.Error("stats query failed", clog.Error(err), clog.String("code", code))
		return nil, xerrors.Wrap(err, "query totals")
	}

	if stats.TotalClicks == 0 {
		return nil, xerrors.Wrapf(ErrNoData, "code %s", code)
	}
	stats.LastClicked = &lastClicked

	if err := s.queryClicksByDay(ctx, code, stats); err != nil {
		return nil, err
	}
	if err := s.queryTopReferrers(ctx, code, stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// queryClicksByDay 最近 30 天的按日点击量，按日期倒序
func (s *StatsService) queryClicksByDay(ctx context.Context, code string, stats *URLStats) error {
	rows, err := s.conn.Query(ctx, `
		SELECT toDate(timestamp) AS date, count() AS clicks
		FROM click_events
		WHERE code = ? AND timestamp >= now() - INTERVAL 30 DAY
		GROUP BY date
		ORDER BY date DESC
	`, code)
	if err != nil {
		return xerrors.Wrap(err, "query clicks by day")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date   time.Time
			clicks uint64
		)
		if err := rows.Scan(&date, &clicks); err != nil {
			return xerrors.Wrap(err, "scan clicks by day")
		}
		stats.ClicksByDay = append(stats.ClicksByDay, DailyClicks{
			Date:   date.Format("2006-01-02"),
			Clicks: clicks,
		})
	}
	return rows.Err()
}

// queryTopReferrers 点击量前 10 的来源站点，空 referrer 不计入
func (s *StatsService) queryTopReferrers(ctx context.Context, code string, stats *URLStats) error {
	rows, err := s.conn.Query(ctx, `
		SELECT referrer, count() AS clicks
		FROM click_events
		WHERE code = ? AND referrer != ''
		GROUP BY referrer
		ORDER BY clicks DESC
		LIMIT 10
	`, code)
	if err != nil {
		return xerrors.Wrap(err, "query top referrers")
	}
	defer rows.Close()

	for rows.Next() {
		var rc ReferrerCount
		if err := rows.Scan(&rc.Referrer, &rc.Clicks); err != nil {
			return xerrors.Wrap(err, "scan top referrers")
		}
		stats.TopReferrers = append(stats.TopReferrers, rc)
	}
	return rows.Err()
}
