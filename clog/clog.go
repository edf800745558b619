// Package clog 为 shortlink 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象接口，不暴露底层实现（slog）
//   - 零外部依赖（仅依赖 Go 标准库）
//   - 支持 json / console 两种输出格式
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	})
//	logger.Info("redirect served", clog.String("code", "4G"))
//
// 创建子 Logger：
//
//	svcLogger := logger.With(clog.String("component", "shortener"))
package clog

import "fmt"

// Logger 日志接口，提供结构化日志记录功能
//
// 支持五个日志级别：Debug、Info、Warn、Error、Fatal。
// Fatal 在输出日志后以非零状态码退出进程，仅用于启动阶段的致命错误。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	//
	// 预设的字段会出现在所有日志中。
	With(fields ...Field) Logger
}

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用默认配置（info 级别，console 格式，stdout 输出）。
func New(config *Config) (Logger, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config)
}

// Discard 返回丢弃所有日志的 Logger，用于测试或显式关闭日志
func Discard() Logger {
	return discardLogger{}
}
