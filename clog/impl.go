package clog

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"time"
)

// logger 的子 Logger 共享 handler，只复制字段与命名空间
type logger struct {
	handler   *handler
	options   *options
	namespace []string
	attrs     []slog.Attr
}

func newLogger(config *Config, o *options) (Logger, error) {
	h, err := newHandler(config, o)
	if err != nil {
		return nil, err
	}
	return &logger{handler: h, options: o, namespace: o.namespaceParts}, nil
}

func (l *logger) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields)
}

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *logger) With(fields ...Field) Logger {
	child := *l
	child.attrs = append(slices.Clip(l.attrs), fields...)
	return &child
}

func (l *logger) WithNamespace(parts ...string) Logger {
	child := *l
	child.namespace = append(slices.Clip(l.namespace), parts...)
	return &child
}

func (l *logger) SetLevel(level Level) {
	l.handler.level.Set(slog.Level(level))
}

func (l *logger) Flush() {
	l.handler.flush()
}

func (l *logger) log(ctx context.Context, level Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, slog.Level(level)) {
		return
	}

	// skip: runtime.Callers, log, Info/InfoContext 等
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), slog.Level(level), msg, pcs[0])
	record.AddAttrs(l.attrs...)
	record.AddAttrs(fields...)
	if l.options.traceContext {
		record.AddAttrs(traceFields(ctx)...)
	}
	if len(l.namespace) > 0 {
		record.AddAttrs(namespaceField(l.namespace))
	}
	_ = l.handler.Handle(ctx, record)
}
