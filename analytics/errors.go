package analytics

import "github.com/ceyewan/shortlink/xerrors"

var (
	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("analytics: connector is nil")

	// ErrChannelUnavailable AMQP channel 不可用（断线重连中）
	ErrChannelUnavailable = xerrors.New("analytics: amqp channel unavailable")

	// ErrInvalidSink 落库器为空
	ErrInvalidSink = xerrors.New("analytics: sink is nil")

	// ErrInvalidTimestamp 时间戳不是可识别的 ISO-8601 形式
	ErrInvalidTimestamp = xerrors.New("analytics: invalid timestamp")

	// ErrNoData 指定短码没有任何点击记录
	ErrNoData = xerrors.New("analytics: no data for code")
)
