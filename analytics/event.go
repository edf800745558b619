// Package analytics 负责点击事件的采集链路：
// 重定向侧发布事件到 RabbitMQ，消费侧落库 ClickHouse，
// 并对外提供聚合统计查询。
package analytics

import (
	"encoding/json"
	"time"

	"github.com/ceyewan/shortlink/xerrors"
)

// 不带时区的 ISO-8601 形式，按 UTC 解释
const timestampLayout = "2006-01-02T15:04:05"

// ClickEvent 一次短链接跳转产生的点击事件
type ClickEvent struct {
	Code        string    `json:"code"`
	Timestamp   time.Time `json:"timestamp"`
	UserAgent   string    `json:"user_agent"`
	IPAddress   string    `json:"ip_address"`
	Referrer    string    `json:"referrer"`
	OriginalURL string    `json:"original_url"`
}

// UnmarshalJSON 宽松解析时间戳
// 事件来自多种客户端，timestamp 兼容带时区（RFC3339）与
// 不带时区（按 UTC 解释）两种 ISO-8601 写法
func (e *ClickEvent) UnmarshalJSON(data []byte) error {
	type alias ClickEvent
	aux := struct {
		Timestamp string `json:"timestamp"`
		*alias
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timestamp == "" {
		e.Timestamp = time.Time{}
		return nil
	}

	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, xerrors.Wrapf(ErrInvalidTimestamp, "%q", s)
	}
	return ts, nil
}

// Normalize 截断时间戳到秒级
// ClickHouse DateTime 不保留亚秒精度，入库前统一截断
func (e ClickEvent) Normalize() ClickEvent {
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Second)
	return e
}
