package idgen

import "github.com/ceyewan/shortlink/xerrors"

var (
	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("idgen: connector is nil")

	// ErrWorkerIDExhausted WorkerID 已耗尽
	ErrWorkerIDExhausted = xerrors.New("idgen: no available worker id")

	// ErrClockRegressed 时钟回拨，拒绝生成
	ErrClockRegressed = xerrors.New("idgen: clock moved backwards")

	// ErrInvalidInput 无效的输入
	ErrInvalidInput = xerrors.New("idgen: invalid input")

	// ErrLeaseLost 租约丢失，WorkerID 可能已被其他实例占用
	ErrLeaseLost = xerrors.New("idgen: worker id lease lost")
)
