// Package breaker 提供按键隔离的熔断器组件。
//
// kv 的 HTTP 网关客户端以操作名（put/range/deleterange/txn/version）作为熔断键，
// 网关持续不可达时快速失败，避免每次调用都等待连接超时。
//
// ## 基本使用
//
//	brk, _ := breaker.New(&breaker.Config{
//		MaxRequests:     1,
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 10,
//	}, breaker.WithLogger(logger))
//
//	store, _ := kv.NewHTTP(cfg, kv.WithBreaker(brk))
package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/xerrors"
)

var (
	// ErrOpenState 熔断打开，或半开状态下放行名额已用完；kv 将其归为 ErrTransport
	ErrOpenState = xerrors.New("breaker: circuit open")

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: empty key")
)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的函数
	// key: 熔断键（例如 kv 操作名）
	Execute(ctx context.Context, key string, fn func() (any, error)) (any, error)

	// State 获取指定键的熔断器状态，未使用过的键视为闭合
	State(key string) (State, error)
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config 熔断器配置
type Config struct {
	// MaxRequests 半开状态下允许通过的最大请求数（默认：1）
	MaxRequests uint32 `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`

	// Interval 闭合状态下的统计周期，0 表示不清空统计
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Timeout 打开状态持续时间（默认：60s），超时后进入半开状态
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// FailureRatio 失败率阈值（默认：0.6）
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`

	// MinimumRequests 触发熔断的最小请求数（默认：10）
	MinimumRequests uint32 `json:"minimum_requests" yaml:"minimum_requests" mapstructure:"minimum_requests"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxRequests:     1,
		Timeout:         60 * time.Second,
		FailureRatio:    0.6,
		MinimumRequests: 10,
	}
}

func (c *Config) validate() error {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "breaker: failure_ratio must be in (0, 1], got %v", c.FailureRatio)
	}
	if c.Interval < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: interval must not be negative")
	}
	return nil
}

// New 创建熔断器实例
//
// 参数:
//   - cfg: 熔断器配置，零值字段使用默认值
//   - opts: 可选参数 (Logger, Meter, Fallback)
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: config is required")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, o := range opts {
		o(&opt)
	}

	return newBreaker(&c, opt)
}
