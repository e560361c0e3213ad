// Package clog kvdiscovery 的结构化日志，基于 log/slog。
//
// 各组件通过 WithLogger 选项注入 Logger，并各自追加命名空间
// （kv、registry、breaker、connector）；未注入时使用 Discard()。
//
//	logger, err := clog.New(&clog.Config{Level: "info", Format: "json", Output: "stderr"},
//	    clog.WithNamespace("kvctl"),
//	    clog.WithTraceContext(),
//	)
//	logger.WithNamespace("registry").InfoContext(ctx, "service node registered",
//	    clog.String("service_name", "go.micro.learning.sum"),
//	    clog.String("key", key))
package clog

import "context"

// Logger 结构化日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// *Context 版本在开启 WithTraceContext 时附带 trace_id 与 span_id
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With 返回带固定字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 返回追加了命名空间的子 Logger，不影响父 Logger
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整级别，对同一 New 创建的全部子 Logger 生效
	SetLevel(level Level)

	// Flush 同步文件输出
	Flush()
}
