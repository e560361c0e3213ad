// Package registry 提供 go-micro 风格的一次性服务发现。
//
// 注册记录存放在 KV 中，键为：
//
//	<namespace>/<service_name>/<service_name>-<uuid> -> JSON(Service)
//
// 例如 `/registry/go.micro.learning.sum/go.micro.learning.sum-3f2a...`。
// 一次发现只做一次区间读取：按服务名构造 [MinUUID, MaxUUID) 键区间，
// 过滤出名称匹配且有节点的记录，再由 Strategy 选出一条，返回其第一个节点。
// 不做 watch、不做缓存、不续约。
//
// ## 基本使用
//
//	store, _ := kv.NewHTTP(&kv.HTTPConfig{Endpoint: "http://127.0.0.1:2379"})
//	defer store.Close()
//
//	res, _ := registry.New(store, &registry.Config{
//		Namespace: "/micro/registry",
//		Timeout:   3 * time.Second,
//	}, registry.WithLogger(logger))
//
//	addr, err := res.DiscoverAddress(ctx, "go.micro.learning.sum")
//	switch {
//	case errors.Is(err, registry.ErrServiceNotFound):
//	case errors.Is(err, registry.ErrNoAvailableNode):
//	}
//
// ## gRPC 集成
//
//	resolver.Register(registry.NewResolverBuilder(res, "micro"))
//	conn, _ := grpc.NewClient("micro:///go.micro.learning.sum", ...)
package registry

import (
	"context"
	"time"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// 指标名称
const (
	MetricDiscoverTotal    = "registry_discover_total"
	MetricDiscoverDuration = "registry_discover_duration_seconds"
)

// Resolver 服务发现接口，并发安全
type Resolver interface {
	// Discover 返回服务的一个可用节点
	Discover(ctx context.Context, name string) (*Node, error)

	// DiscoverAddress 返回服务一个可用节点的地址
	DiscoverAddress(ctx context.Context, name string) (string, error)

	// Lookup 返回服务全部可用节点，顺序与注册键一致
	Lookup(ctx context.Context, name string) ([]*Node, error)

	// Namespace 返回实际使用的键前缀
	Namespace() string
}

type resolver struct {
	store    kv.Ranger
	cfg      Config
	selector *Selector
	logger   clog.Logger
	total    metrics.Counter
	duration metrics.Histogram
}

// New 创建 Resolver
//
// 参数:
//   - store: 只需要区间读取能力，kv.Store 的两种后端都满足
//   - cfg: 配置，nil 时使用默认值
//   - opts: Logger、Meter、Strategy、Codec
func New(store kv.Ranger, cfg *Config, opts ...Option) (Resolver, error) {
	if store == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "registry: kv store is required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	selector, err := newSelector(o)
	if err != nil {
		return nil, err
	}
	total, err := o.meter.Counter(MetricDiscoverTotal, "Service discovery calls by outcome")
	if err != nil {
		return nil, xerrors.Wrap(err, "registry: create discover counter")
	}
	duration, err := o.meter.Histogram(MetricDiscoverDuration, "Service discovery latency", metrics.WithUnit("s"))
	if err != nil {
		return nil, xerrors.Wrap(err, "registry: create discover histogram")
	}

	return &resolver{
		store:    store,
		cfg:      c,
		selector: selector,
		logger:   o.logger,
		total:    total,
		duration: duration,
	}, nil
}

func (r *resolver) Namespace() string {
	return r.cfg.Namespace
}

func (r *resolver) DiscoverAddress(ctx context.Context, name string) (string, error) {
	node, err := r.Discover(ctx, name)
	if err != nil {
		return "", err
	}
	return node.Address, nil
}

func (r *resolver) Discover(ctx context.Context, name string) (node *Node, err error) {
	ctx, finish := r.observe(ctx, "registry.discover", name)
	defer func() { finish(err, node) }()

	entries, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	node, err = r.selector.Select(ctx, entries, name)
	if err != nil {
		return nil, newDiscoveryError(ErrNoAvailableNode, name, err)
	}
	return node, nil
}

func (r *resolver) Lookup(ctx context.Context, name string) (nodes []*Node, err error) {
	ctx, finish := r.observe(ctx, "registry.lookup", name)
	defer func() { finish(err, nil) }()

	entries, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, svc := range r.selector.Candidates(ctx, entries, name) {
		nodes = append(nodes, svc.Nodes...)
	}
	if len(nodes) == 0 {
		return nil, newDiscoveryError(ErrNoAvailableNode, name, ErrNoAvailableNode)
	}
	return nodes, nil
}

// fetch 读取服务的全部注册记录，没有记录时返回 ErrServiceNotFound
func (r *resolver) fetch(ctx context.Context, name string) ([]*kv.KeyValue, error) {
	rng, err := BuildRangeIn(r.cfg.Namespace, name)
	if err != nil {
		return nil, newDiscoveryError(ErrInvalidArgument, name, err)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	res, err := r.store.Range(ctx, rng.Start, rng.End)
	if err != nil {
		return nil, newDiscoveryError(ErrTransport, name, err)
	}
	// 有记录但全部解码失败时交给 selector，结果是 ErrNoAvailableNode
	if res.Count == 0 && len(res.KVs) == 0 {
		return nil, newDiscoveryError(ErrServiceNotFound, name, ErrServiceNotFound)
	}
	return res.KVs, nil
}

// observe 为一次发现创建 Span，返回的 finish 记录指标与日志
func (r *resolver) observe(ctx context.Context, spanName, name string) (context.Context, func(error, *Node)) {
	ctx, span := trace.Tracer().Start(ctx, spanName, oteltrace.WithAttributes(
		attribute.String("registry.service", name),
		attribute.String("registry.namespace", r.cfg.Namespace),
	))
	start := time.Now()

	return ctx, func(err error, node *Node) {
		defer span.End()
		elapsed := time.Since(start)
		outcome := outcomeOf(err)
		r.total.Inc(ctx, metrics.L(metrics.LabelOperation, spanName), metrics.L(metrics.LabelOutcome, outcome))
		r.duration.Record(ctx, elapsed.Seconds(), metrics.L(metrics.LabelOperation, spanName))

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			r.logger.WarnContext(ctx, "service discovery failed",
				clog.String("service_name", name),
				clog.Duration("elapsed", elapsed),
				clog.ErrorWithCode(err, xerrors.GetCode(err)))
			return
		}
		fields := []clog.Field{clog.String("service_name", name), clog.Duration("elapsed", elapsed)}
		if node != nil {
			span.SetAttributes(attribute.String("registry.node_id", node.ID), attribute.String("registry.address", node.Address))
			fields = append(fields, clog.String("node_id", node.ID), clog.String("address", node.Address))
		}
		r.logger.DebugContext(ctx, "service discovered", fields...)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var de *DiscoveryError
	if xerrors.As(err, &de) {
		switch de.Kind {
		case ErrInvalidArgument:
			return "invalid_argument"
		case ErrTransport:
			return "transport"
		case ErrServiceNotFound:
			return "not_found"
		case ErrNoAvailableNode:
			return "no_available_node"
		}
	}
	return metrics.OutcomeError
}
