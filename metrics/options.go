package metrics

import "github.com/ceyewan/kvdiscovery/clog"

// Option 配置 New
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 记录 /metrics 服务的启停，自动加上 metrics 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("metrics")
		}
	}
}

// MetricOption 配置单个指标
type MetricOption func(*metricOptions)

type metricOptions struct {
	unit string
}

// WithUnit 设置 UCUM 单位，耗时类指标使用 "s"
func WithUnit(unit string) MetricOption {
	return func(o *metricOptions) {
		o.unit = unit
	}
}

func applyMetricOptions(opts []MetricOption) metricOptions {
	var o metricOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
