package shortener

import "github.com/ceyewan/shortlink/xerrors"

var (
	// ErrNotFound 短码不存在
	ErrNotFound = xerrors.New("shortener: short url not found")

	// ErrInvalidURL 原始 URL 非法
	ErrInvalidURL = xerrors.New("shortener: invalid original url")

	// ErrCodeCollision 短码唯一索引冲突
	// 正常情况下不可能发生，出现即说明 WorkerID 互斥被破坏
	ErrCodeCollision = xerrors.New("shortener: short code collision")

	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = xerrors.New("shortener: cache miss")

	// ErrInvalidInput 无效的输入
	ErrInvalidInput = xerrors.New("shortener: invalid input")
)
