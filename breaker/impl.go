package breaker

import (
	"context"
	"sync"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"github.com/sony/gobreaker/v2"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	cfg      *Config
	logger   clog.Logger
	fallback FallbackFunc

	requests     metrics.Counter
	rejects      metrics.Counter
	stateChanges metrics.Counter

	// 键级熔断器
	breakers sync.Map // map[string]*gobreaker.CircuitBreaker[any]
}

func newBreaker(cfg *Config, opt options) (Breaker, error) {
	cb := &circuitBreaker{
		cfg:      cfg,
		logger:   opt.logger,
		fallback: opt.fallback,
	}

	var err error
	if cb.requests, err = opt.meter.Counter(MetricRequestsTotal, "Calls executed through the circuit breaker"); err != nil {
		return nil, xerrors.Wrap(err, "breaker: create requests counter")
	}
	if cb.rejects, err = opt.meter.Counter(MetricRejectsTotal, "Calls rejected by an open circuit"); err != nil {
		return nil, xerrors.Wrap(err, "breaker: create rejects counter")
	}
	if cb.stateChanges, err = opt.meter.Counter(MetricStateChanges, "Circuit breaker state transitions"); err != nil {
		return nil, xerrors.Wrap(err, "breaker: create state counter")
	}

	cb.logger.Info("circuit breaker created",
		clog.Int("max_requests", int(cfg.MaxRequests)),
		clog.Duration("timeout", cfg.Timeout),
		clog.Float64("failure_ratio", cfg.FailureRatio),
		clog.Int("minimum_requests", int(cfg.MinimumRequests)))

	return cb, nil
}

// Execute 执行受熔断保护的函数
func (cb *circuitBreaker) Execute(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}

	result, err := cb.getOrCreateBreaker(key).Execute(fn)

	if err != nil && (xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests)) {
		cb.rejects.Inc(ctx, metrics.L(LabelKey, key))
		cb.logger.WarnContext(ctx, "circuit breaker rejected call",
			clog.String("key", key),
			clog.Error(err))

		if cb.fallback != nil {
			return nil, cb.fallback(ctx, key, ErrOpenState)
		}
		return nil, xerrors.Wrapf(ErrOpenState, "key %q", key)
	}

	cb.requests.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelResult, metrics.Outcome(err)))
	return result, err
}

// State 获取指定键的熔断器状态
func (cb *circuitBreaker) State(key string) (State, error) {
	if key == "" {
		return StateClosed, ErrKeyEmpty
	}

	val, ok := cb.breakers.Load(key)
	if !ok {
		return StateClosed, nil
	}
	return fromGoBreaker(val.(*gobreaker.CircuitBreaker[any]).State()), nil
}

func (cb *circuitBreaker) getOrCreateBreaker(key string) *gobreaker.CircuitBreaker[any] {
	if val, ok := cb.breakers.Load(key); ok {
		return val.(*gobreaker.CircuitBreaker[any])
	}

	settings := gobreaker.Settings{
		Name:          key,
		MaxRequests:   cb.cfg.MaxRequests,
		Interval:      cb.cfg.Interval,
		Timeout:       cb.cfg.Timeout,
		ReadyToTrip:   cb.readyToTrip,
		OnStateChange: cb.onStateChange,
		IsSuccessful:  isSuccessful,
	}

	// 并发创建时以先写入者为准
	actual, _ := cb.breakers.LoadOrStore(key, gobreaker.NewCircuitBreaker[any](settings))
	return actual.(*gobreaker.CircuitBreaker[any])
}

func (cb *circuitBreaker) readyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < cb.cfg.MinimumRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= cb.cfg.FailureRatio
}

func (cb *circuitBreaker) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	cb.stateChanges.Inc(context.Background(),
		metrics.L(LabelKey, name),
		metrics.L(LabelFromState, fromGoBreaker(from).String()),
		metrics.L(LabelToState, fromGoBreaker(to).String()))
	cb.logger.Warn("circuit breaker state changed",
		clog.String("key", name),
		clog.String("from", fromGoBreaker(from).String()),
		clog.String("to", fromGoBreaker(to).String()))
}

// isSuccessful 调用方主动取消不计入失败
func isSuccessful(err error) bool {
	return err == nil || xerrors.Is(err, context.Canceled)
}

func fromGoBreaker(state gobreaker.State) State {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}
