package analytics

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/connector"
	"github.com/ceyewan/shortlink/xerrors"
)

// click_events 表：MergeTree 按 (code, timestamp) 排序，
// 与按短码查询聚合统计的访问模式对齐
const createTableDDL = `
CREATE TABLE IF NOT EXISTS click_events (
	code         String,
	timestamp    DateTime,
	user_agent   String,
	ip_address   String,
	referrer     String,
	original_url String
) ENGINE = MergeTree()
ORDER BY (code, timestamp)
`

const insertQuery = `INSERT INTO click_events (code, timestamp, user_agent, ip_address, referrer, original_url)`

// Sink 点击事件的 ClickHouse 落库器
type Sink struct {
	conn   driver.Conn
	logger clog.Logger
}

// NewSink 创建落库器并确保表存在
func NewSink(ctx context.Context, ch connector.ClickHouseConnector, logger clog.Logger) (*Sink, error) {
	if ch == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "clickhouse_connector_required")
	}
	if logger == nil {
		logger = clog.Discard()
	}

	s := &Sink{
		conn:   ch.GetClient(),
		logger: logger.With(clog.String("component", "analytics.sink")),
	}

	if err := s.EnsureTable(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// EnsureTable 建表（幂等）
func (s *Sink) EnsureTable(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createTableDDL); err != nil {
		s.logger.Error("failed to ensure click_events table", clog.Error(err))
		return xerrors.Wrap(err, "ensure click_events table")
	}
	s.logger.Info("click_events table ensured")
	return nil
}

// Insert 写入单条点击事件
func (s *Sink) Insert(ctx context.Context, event ClickEvent) error {
	event = event.Normalize()

	batch, err := s.conn.PrepareBatch(ctx, insertQuery)
	if err != nil {
		return xerrors.Wrap(err, "prepare batch")
	}

	if err := batch.Append(
		event.Code,
		event.Timestamp,
		event.UserAgent,
		event.IPAddress,
		event.Referrer,
		event.OriginalURL,
	); err != nil {
		return xerrors.Wrap(err, "append row")
	}

	if err := batch.Send(); err != nil {
		return xerrors.Wrap(err, "send batch")
	}

	s.logger.Debug("click event inserted", clog.String("code", event.Code))
	return nil
}
