package registry

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/xerrors"
)

// MetricEntriesSkipped 被过滤掉的注册记录数 (Counter)
const MetricEntriesSkipped = "registry_entries_skipped_total"

// 过滤原因
const (
	skipDecode       = "decode"
	skipNameMismatch = "name_mismatch"
	skipNoNodes      = "no_nodes"
)

// Strategy 从候选服务记录中选出一个，返回下标
//
// 实现必须并发安全。返回越界下标视为没有可用节点。
type Strategy interface {
	Pick(service string, candidates []*Service) int
}

// StrategyFunc 函数形式的 Strategy
type StrategyFunc func(service string, candidates []*Service) int

func (f StrategyFunc) Pick(service string, candidates []*Service) int {
	return f(service, candidates)
}

// Random 均匀随机选择
func Random() Strategy {
	return StrategyFunc(func(_ string, candidates []*Service) int {
		return rand.IntN(len(candidates))
	})
}

// RoundRobin 按服务名轮询
func RoundRobin() Strategy {
	return &roundRobin{}
}

type roundRobin struct {
	counters sync.Map // map[string]*atomic.Uint64
}

func (r *roundRobin) Pick(service string, candidates []*Service) int {
	v, _ := r.counters.LoadOrStore(service, new(atomic.Uint64))
	n := v.(*atomic.Uint64).Add(1) - 1
	return int(n % uint64(len(candidates)))
}

// Selector 过滤注册记录并选出一个节点
type Selector struct {
	codec    Codec
	strategy Strategy
	logger   clog.Logger
	skipped  metrics.Counter
}

// NewSelector 创建 Selector
func NewSelector(opts ...Option) (*Selector, error) {
	return newSelector(applyOptions(opts))
}

func newSelector(o *options) (*Selector, error) {
	skipped, err := o.meter.Counter(MetricEntriesSkipped, "Registry entries ignored during node selection")
	if err != nil {
		return nil, xerrors.Wrap(err, "registry: create skipped counter")
	}
	return &Selector{
		codec:    o.codec,
		strategy: o.strategy,
		logger:   o.logger,
		skipped:  skipped,
	}, nil
}

// Candidates 解码并过滤记录，只保留名称精确匹配且首节点可用的服务
//
// 单条记录解码失败不会中断整体流程。
func (s *Selector) Candidates(ctx context.Context, entries []*kv.KeyValue, name string) []*Service {
	candidates := make([]*Service, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		var svc Service
		if err := s.codec.Unmarshal(entry.Value, &svc); err != nil {
			s.skip(ctx, skipDecode, entry, clog.Error(err))
			continue
		}
		if svc.Name != name {
			s.skip(ctx, skipNameMismatch, entry, clog.String("found", svc.Name))
			continue
		}
		// 选择固定取 Nodes[0]，首节点不可用时整条记录作废
		if len(svc.Nodes) == 0 || !usable(svc.Nodes[0]) {
			s.skip(ctx, skipNoNodes, entry)
			continue
		}
		svc.Nodes = svc.usableNodes()
		candidates = append(candidates, &svc)
	}
	return candidates
}

// Select 选出一个候选服务并返回其第一个节点
func (s *Selector) Select(ctx context.Context, entries []*kv.KeyValue, name string) (*Node, error) {
	candidates := s.Candidates(ctx, entries, name)
	if len(candidates) == 0 {
		return nil, xerrors.Wrapf(ErrNoAvailableNode, "%d entries, none usable", len(entries))
	}
	i := s.strategy.Pick(name, candidates)
	if i < 0 || i >= len(candidates) {
		return nil, xerrors.Wrapf(ErrNoAvailableNode, "strategy picked %d of %d", i, len(candidates))
	}
	return candidates[i].Nodes[0], nil
}

func (s *Selector) skip(ctx context.Context, reason string, entry *kv.KeyValue, fields ...clog.Field) {
	s.skipped.Inc(ctx, metrics.L(metrics.LabelReason, reason))
	fields = append([]clog.Field{
		clog.String("key", string(entry.Key)),
		clog.String("reason", reason),
	}, fields...)
	s.logger.WarnContext(ctx, "registry entry skipped", fields...)
}
