package clog

import "io"

// Option 配置 New
type Option func(*options)

type options struct {
	namespaceParts []string
	writer         io.Writer
	traceContext   bool
}

// WithNamespace 追加命名空间，以 "." 连接写入 namespace 字段
//
//	clog.WithNamespace("kvctl")  // namespace=kvctl
//	logger.WithNamespace("kv")   // namespace=kvctl.kv
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithTraceContext 从 ctx 中的 OTel Span 提取 trace_id 与 span_id
//
// kv 请求的日志因此可以和网关侧的 Span 对上。
func WithTraceContext() Option {
	return func(o *options) {
		o.traceContext = true
	}
}

// WithWriter 输出到 w，忽略 Config.Output
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
