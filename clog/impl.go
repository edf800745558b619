package clog

import (
	"io"
	"log/slog"
	"os"
)

// slogLogger 是 Logger 接口的 slog 实现
type slogLogger struct {
	logger *slog.Logger
}

// newLogger 根据配置构造底层 slog Logger（内部使用）
func newLogger(cfg *Config) (Logger, error) {
	var w io.Writer
	switch cfg.Output {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &slogLogger{logger: slog.New(handler)}, nil
}

func fieldsToArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return args
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.logger.Debug(msg, fieldsToArgs(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.logger.Info(msg, fieldsToArgs(fields)...)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.logger.Warn(msg, fieldsToArgs(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.logger.Error(msg, fieldsToArgs(fields)...)
}

// Fatal 输出 error 级别日志后退出进程
func (l *slogLogger) Fatal(msg string, fields ...Field) {
	l.logger.Error(msg, fieldsToArgs(fields)...)
	os.Exit(1)
}

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{logger: l.logger.With(fieldsToArgs(fields)...)}
}

// discardLogger 丢弃所有日志
type discardLogger struct{}

func (discardLogger) Debug(string, ...Field) {}
func (discardLogger) Info(string, ...Field)  {}
func (discardLogger) Warn(string, ...Field)  {}
func (discardLogger) Error(string, ...Field) {}
func (discardLogger) Fatal(msg string, fields ...Field) {
	os.Exit(1)
}
func (d discardLogger) With(...Field) Logger { return d }
