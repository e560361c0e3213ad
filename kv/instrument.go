package kv

import (
	"context"
	"time"

	"github.com/ceyewan/kvdiscovery/breaker"
	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// 指标名称
const (
	MetricRequestsTotal   = "kv_requests_total"
	MetricRequestDuration = "kv_request_duration_seconds"
)

// 操作名，同时用作熔断键与 Span 名后缀
const (
	opPut         = "put"
	opRange       = "range"
	opDeleteRange = "deleterange"
	opTxn         = "txn"
	opVersion     = "version"
)

// instrument 两个后端共用的日志、指标、链路与熔断封装
type instrument struct {
	backend  string
	logger   clog.Logger
	breaker  breaker.Breaker
	requests metrics.Counter
	duration metrics.Histogram
}

func newInstrument(backend string, opt *options) (*instrument, error) {
	ins := &instrument{
		backend: backend,
		logger:  opt.logger.With(clog.String("backend", backend)),
		breaker: opt.breaker,
	}
	var err error
	ins.requests, err = opt.meter.Counter(MetricRequestsTotal, "KV requests by operation and outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "kv: create requests counter")
	}
	ins.duration, err = opt.meter.Histogram(MetricRequestDuration, "KV request latency", metrics.WithUnit("s"))
	if err != nil {
		return nil, xerrors.Wrap(err, "kv: create duration histogram")
	}
	return ins, nil
}

// do 执行一次操作：创建 Span、经过熔断器、记录指标与日志
func (ins *instrument) do(ctx context.Context, op string, key []byte, fn func(ctx context.Context) error) error {
	ctx, span := trace.Tracer().Start(ctx, "kv."+op,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("kv.backend", ins.backend),
			attribute.String("kv.operation", op),
		))
	defer span.End()

	start := time.Now()
	err := ins.guard(ctx, op, fn)
	elapsed := time.Since(start)

	labels := []metrics.Label{
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelBackend, ins.backend),
	}
	ins.duration.Record(ctx, elapsed.Seconds(), labels...)
	labels = append(labels, metrics.L(metrics.LabelOutcome, metrics.Outcome(err)))
	var se *StoreError
	if xerrors.As(err, &se) && se.HTTPStatus > 0 {
		labels = append(labels, metrics.L(metrics.LabelStatusClass, metrics.HTTPStatusClass(se.HTTPStatus)))
	}
	ins.requests.Inc(ctx, labels...)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !xerrors.Is(err, ErrKeyNotFound) {
			ins.logger.WarnContext(ctx, "kv request failed",
				clog.String("operation", op),
				clog.String("key", string(key)),
				clog.Duration("elapsed", elapsed),
				clog.ErrorWithCode(err, errorCode(err)))
		}
		return err
	}

	ins.logger.DebugContext(ctx, "kv request done",
		clog.String("operation", op),
		clog.String("key", string(key)),
		clog.Duration("elapsed", elapsed))
	return nil
}

// guard 只让传输层失败与服务端 5xx 计入熔断统计
func (ins *instrument) guard(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if ins.breaker == nil {
		return fn(ctx)
	}
	var (
		called  bool
		callErr error
	)
	_, err := ins.breaker.Execute(ctx, op, func() (any, error) {
		called = true
		callErr = fn(ctx)
		if countsAsFailure(callErr) {
			return nil, callErr
		}
		return nil, nil
	})
	if !called {
		// 熔断器拒绝了调用；即使 fallback 吞掉了错误也没有结果可返回
		if err == nil {
			err = breaker.ErrOpenState
		}
		return transportError(op, err)
	}
	return callErr
}

func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if xerrors.Is(err, ErrTransport) {
		return true
	}
	var se *StoreError
	return xerrors.As(err, &se) && se.HTTPStatus >= 500
}

func errorCode(err error) string {
	switch {
	case xerrors.Is(err, ErrTransport):
		return "TRANSPORT"
	case xerrors.Is(err, ErrMalformedResponse):
		return "MALFORMED_RESPONSE"
	case xerrors.Is(err, ErrStore):
		return "STORE_ERROR"
	case xerrors.Is(err, ErrInvalidKey):
		return "INVALID_KEY"
	default:
		return "UNKNOWN"
	}
}
