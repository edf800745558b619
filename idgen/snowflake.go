// Package idgen 提供分布式 ID 生成能力。
//
// Snowflake 生成器产出 64 位趋势递增 ID；LeaseManager 通过
// Redis/Etcd 租约在集群内分配互斥的 WorkerID。
package idgen

import (
	"sync"
	"time"

	"github.com/ceyewan/shortlink/clog"
	"github.com/ceyewan/shortlink/xerrors"
)

const (
	// Epoch 自定义纪元 2024-01-01T00:00:00Z (毫秒)
	Epoch int64 = 1704067200000

	workerBits = 10
	seqBits    = 12

	maxWorkerID = int64(-1) ^ (int64(-1) << workerBits) // 1023
	maxSequence = int64(-1) ^ (int64(-1) << seqBits)    // 4095

	workerShift    = seqBits
	timestampShift = workerBits + seqBits
)

// Snowflake 雪花算法生成器
//
// 位结构: [1 bit 符号位 | 41 bit 毫秒时间戳 | 10 bit WorkerID | 12 bit 序列号]。
// 同一 WorkerID 下单实例每毫秒最多生成 4096 个 ID；
// 检测到时钟回拨时直接返回 ErrClockRegressed，由调用方决定重试策略。
type Snowflake struct {
	mu       sync.Mutex
	workerID int64
	sequence int64
	lastTime int64
	logger   clog.Logger

	// 可注入时钟，单测用
	now func() int64
}

// SnowflakeOption Snowflake 初始化选项
type SnowflakeOption func(*Snowflake)

// WithSnowflakeLogger 设置 Logger
func WithSnowflakeLogger(logger clog.Logger) SnowflakeOption {
	return func(s *Snowflake) {
		s.logger = logger
	}
}

// NewSnowflake 创建 Snowflake 生成器
//
// workerID 取值 [0, 1023]，必须在集群内互斥，
// 通常来自 LeaseManager.Acquire 的分配结果。
func NewSnowflake(workerID int64, opts ...SnowflakeOption) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, xerrors.WithCode(ErrInvalidInput, "worker_id_out_of_range")
	}

	sf := &Snowflake{
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}

	for _, opt := range opts {
		opt(sf)
	}

	if sf.logger == nil {
		sf.logger = clog.Discard()
	}

	sf.logger.Info("snowflake generator created", clog.Int64("worker_id", workerID))

	return sf, nil
}

// Generate 生成下一个 ID
//
// 时钟回拨时返回 ErrClockRegressed；序列号溢出时自旋等待下一毫秒。
func (s *Snowflake) Generate() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if now < s.lastTime {
		drift := time.Duration(s.lastTime-now) * time.Millisecond
		s.logger.Error("clock moved backwards, refusing to generate",
			clog.Int64("last_ms", s.lastTime),
			clog.Int64("now_ms", now),
			clog.Duration("drift", drift),
		)
		return 0, xerrors.Wrapf(ErrClockRegressed, "drift: %v", drift)
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// 当前毫秒已耗尽，等待下一毫秒
			for now <= s.lastTime {
				now = s.now()
			}
		}
	} else {
		s.sequence = 0
	}

	s.lastTime = now

	id := ((now - Epoch) << timestampShift) | (s.workerID << workerShift) | s.sequence

	return id, nil
}

// WorkerID 返回生成器持有的 WorkerID
func (s *Snowflake) WorkerID() int64 {
	return s.workerID
}

// ID Snowflake ID 的解码结果
type ID struct {
	TimestampMs int64 // Unix 毫秒时间戳（已加回纪元偏移）
	WorkerID    int64
	Sequence    int64
}

// Time 返回 ID 对应的生成时间
func (id ID) Time() time.Time {
	return time.UnixMilli(id.TimestampMs)
}

// Parse 解码 Snowflake ID 的各个字段
func Parse(id int64) ID {
	return ID{
		TimestampMs: (id >> timestampShift) + Epoch,
		WorkerID:    (id >> workerShift) & maxWorkerID,
		Sequence:    id & maxSequence,
	}
}
