// Package trace 负责初始化 OpenTelemetry 链路追踪。
//
// kv 组件为每次网关请求创建 "kv.<op>" Span 并注入 traceparent 请求头，
// registry 组件为每次发现创建 "registry.discover" 或 "registry.lookup" Span。
// kvctl 启动时按配置调用 Init（导出到 OTLP）或 Discard（只生成 TraceID，不导出）。
package trace

import (
	"context"
	"time"

	"github.com/ceyewan/kvdiscovery/xerrors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentationName kv 与 registry 创建 Tracer 时使用的名称
const InstrumentationName = "github.com/ceyewan/kvdiscovery"

// exportTimeout 单次 OTLP 导出的超时
const exportTimeout = 5 * time.Second

// ShutdownFunc 刷新并关闭 TracerProvider
type ShutdownFunc func(context.Context) error

// Tracer 返回全局 Provider 下的 Tracer；未初始化时 Span 不会被记录
func Tracer() oteltrace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Init 将 Span 经 OTLP gRPC 导出到 cfg.Endpoint（Tempo、Jaeger 等）
func Init(cfg *Config) (ShutdownFunc, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "trace: create otlp exporter")
	}

	export := sdktrace.WithBatcher(exporter)
	if cfg.Batcher == BatcherSimple {
		export = sdktrace.WithSyncer(exporter)
	}
	return install(ctx, cfg.ServiceName, cfg.Sampler, export)
}

// Discard 只在本地生成 TraceID，使 traceparent 仍能传到网关
func Discard(serviceName string) (ShutdownFunc, error) {
	return install(context.Background(), serviceName, 1)
}

func install(ctx context.Context, serviceName string, ratio float64, opts ...sdktrace.TracerProviderOption) (ShutdownFunc, error) {
	var attrs []resource.Option
	if serviceName != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, xerrors.Wrap(err, "trace: create resource")
	}

	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))))
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	// traceparent 跨进程传播，baggage 透传自定义键值
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
