// Package metrics kvdiscovery 的指标接口，基于 OpenTelemetry，经 Prometheus 暴露。
//
// kv、registry、breaker 与 connector 只依赖本包的接口，默认注入 Discard()。
// kvctl 按 metrics 配置段创建真实 Meter：
//
//	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "kvctl", Port: 9090, Path: "/metrics"})
//	if err != nil {
//	    return err
//	}
//	defer meter.Shutdown(ctx)
//
//	requests, _ := meter.Counter("kv_requests_total", "KV requests by operation and outcome")
//	requests.Inc(ctx, metrics.L(metrics.LabelOperation, "range"), metrics.L(metrics.LabelOutcome, metrics.OutcomeSuccess))
package metrics

import "context"

// Counter 单调递增的计数，例如 kv_requests_total、registry_entries_skipped_total
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
}

// Gauge 可覆盖的瞬时值，例如 etcd 连接是否可用
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
}

// Histogram 取值分布，例如 kv_request_duration_seconds
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标工厂，创建出的指标可并发使用
//
// 名称遵循 Prometheus 规范；同名指标重复创建时共享同一份数据。
type Meter interface {
	Counter(name, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 /metrics 服务并刷新 Provider，之后的记录被丢弃
	Shutdown(ctx context.Context) error
}
