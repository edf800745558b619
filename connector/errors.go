package connector

import "github.com/ceyewan/shortlink/xerrors"

var (
	// ErrConfig 配置无效
	ErrConfig = xerrors.New("connector: invalid config")

	// ErrConnection 连接建立失败
	ErrConnection = xerrors.New("connector: connection failed")

	// ErrClientNil 客户端未初始化或已关闭
	ErrClientNil = xerrors.New("connector: client is nil")

	// ErrHealthCheck 健康检查失败
	ErrHealthCheck = xerrors.New("connector: health check failed")
)
