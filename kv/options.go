package kv

import (
	"net/http"

	"github.com/ceyewan/kvdiscovery/breaker"
	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger     clog.Logger
	meter      metrics.Meter
	breaker    breaker.Breaker
	httpClient *http.Client
}

func defaultOptions() *options {
	return &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
}

// WithLogger 设置 Logger，内部会自动添加 namespace: "kv"
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("kv")
		}
	}
}

// WithMeter 设置指标 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithBreaker 为每类操作启用熔断，熔断键为操作名
func WithBreaker(brk breaker.Breaker) Option {
	return func(o *options) {
		o.breaker = brk
	}
}

// WithHTTPClient 使用自定义 http.Client（仅 HTTP 后端）
//
// 传入的客户端由调用方持有，Store.Close 不会关闭其空闲连接。
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}
