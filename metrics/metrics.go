package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// meterName kv 与 registry 指标所属的 instrumentation scope
const meterName = "github.com/ceyewan/kvdiscovery"

const readHeaderTimeout = 5 * time.Second

// New 创建 Meter
//
// cfg.Enabled 为 false 时返回 Discard()。Port 大于 0 时在 :Port{Path} 暴露
// Prometheus 格式的指标，Shutdown 时一并关闭。
func New(cfg *Config, opts ...Option) (Meter, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "metrics: config is required")
	}
	if !cfg.Enabled {
		return Discard(), nil
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.ServiceName),
		semconv.ServiceVersionKey.String(cfg.Version),
	))
	if err != nil {
		return nil, xerrors.Wrap(err, "metrics: create resource")
	}
	exporter, err := prometheus.New()
	if err != nil {
		return nil, xerrors.Wrap(err, "metrics: create prometheus exporter")
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	m := &meter{meter: mp.Meter(meterName), provider: mp, logger: o.logger}
	if cfg.Port > 0 && cfg.Path != "" {
		m.serve(cfg)
	}
	return m, nil
}

type meter struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	server   *http.Server
	logger   clog.Logger
}

func (m *meter) serve(cfg *Config) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	m.logger.Info("serving prometheus metrics",
		clog.String("addr", m.server.Addr),
		clog.String("path", cfg.Path))
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("prometheus metrics server stopped", clog.Error(err))
		}
	}()
}

func (m *meter) Counter(name, desc string, opts ...MetricOption) (Counter, error) {
	o := applyMetricOptions(opts)
	c, err := m.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(o.unit))
	if err != nil {
		return nil, xerrors.Wrapf(err, "metrics: counter %s", name)
	}
	return counter{c}, nil
}

func (m *meter) Gauge(name, desc string, opts ...MetricOption) (Gauge, error) {
	o := applyMetricOptions(opts)
	g, err := m.meter.Float64Gauge(name, metric.WithDescription(desc), metric.WithUnit(o.unit))
	if err != nil {
		return nil, xerrors.Wrapf(err, "metrics: gauge %s", name)
	}
	return gauge{g}, nil
}

func (m *meter) Histogram(name, desc string, opts ...MetricOption) (Histogram, error) {
	o := applyMetricOptions(opts)
	h, err := m.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(o.unit))
	if err != nil {
		return nil, xerrors.Wrapf(err, "metrics: histogram %s", name)
	}
	return histogram{h}, nil
}

func (m *meter) Shutdown(ctx context.Context) error {
	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
	}
	errs = append(errs, m.provider.Shutdown(ctx))
	return xerrors.Combine(errs...)
}

type counter struct{ c metric.Int64Counter }

func (c counter) Inc(ctx context.Context, labels ...Label) {
	c.c.Add(ctx, 1, metric.WithAttributes(attributes(labels)...))
}

type gauge struct{ g metric.Float64Gauge }

func (g gauge) Set(ctx context.Context, val float64, labels ...Label) {
	g.g.Record(ctx, val, metric.WithAttributes(attributes(labels)...))
}

type histogram struct{ h metric.Float64Histogram }

func (h histogram) Record(ctx context.Context, val float64, labels ...Label) {
	h.h.Record(ctx, val, metric.WithAttributes(attributes(labels)...))
}

func attributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}

// Discard 丢弃所有记录，组件未注入 Meter 时使用
func Discard() Meter { return discard{} }

type discard struct{}

func (discard) Counter(string, string, ...MetricOption) (Counter, error)     { return discard{}, nil }
func (discard) Gauge(string, string, ...MetricOption) (Gauge, error)         { return discard{}, nil }
func (discard) Histogram(string, string, ...MetricOption) (Histogram, error) { return discard{}, nil }
func (discard) Shutdown(context.Context) error                               { return nil }
func (discard) Inc(context.Context, ...Label)                                {}
func (discard) Set(context.Context, float64, ...Label)                       {}
func (discard) Record(context.Context, float64, ...Label)                    {}
