package main

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/ceyewan/kvdiscovery/breaker"
	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/config"
	"github.com/ceyewan/kvdiscovery/connector"
	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/registry"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"
)

const serviceName = "kvctl"

// 后端类型
const (
	backendHTTP = "http"
	backendEtcd = "etcd"
)

// appConfig kvctl.yaml 的完整结构
type appConfig struct {
	Log      clog.Config     `mapstructure:"log"`
	Metrics  metrics.Config  `mapstructure:"metrics"`
	Trace    traceConfig     `mapstructure:"trace"`
	KV       kvConfig        `mapstructure:"kv"`
	Breaker  breakerConfig   `mapstructure:"breaker"`
	Registry registry.Config `mapstructure:"registry"`
}

type kvConfig struct {
	// Backend http (JSON 网关) 或 etcd (clientv3)
	Backend       string `mapstructure:"backend"`
	kv.HTTPConfig `mapstructure:",squash"`
	Etcd          connector.EtcdConfig `mapstructure:"etcd"`
}

type traceConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	trace.Config `mapstructure:",squash"`
}

type breakerConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	breaker.Config `mapstructure:",squash"`
}

func defaultAppConfig() *appConfig {
	return &appConfig{
		Log:     clog.Config{Level: "warn", Format: "console", Output: "stderr"},
		Metrics: metrics.Config{ServiceName: serviceName, Path: "/metrics"},
		Trace:   traceConfig{Config: *trace.DefaultConfig(serviceName)},
		KV: kvConfig{
			Backend:    backendHTTP,
			HTTPConfig: *kv.DefaultHTTPConfig(),
		},
		Breaker:  breakerConfig{Config: *breaker.DefaultConfig()},
		Registry: registry.Config{Namespace: registry.DefaultNamespace},
	}
}

// loadConfig 按 文件 -> 环境变量 的顺序加载配置，找不到文件时使用默认值
func loadConfig(ctx context.Context, name string, paths []string) (*appConfig, error) {
	loader, err := config.New(&config.Config{
		Name:      name,
		Paths:     paths,
		EnvPrefix: "KVCTL",
	})
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, xerrors.Wrap(err, "load config")
	}
	cfg := defaultAppConfig()
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, xerrors.Wrap(err, "decode config")
	}
	return cfg, nil
}

// app 一次命令执行所需的全部依赖
type app struct {
	cfg       *appConfig
	logger    clog.Logger
	meter     metrics.Meter
	store     kv.Store
	shutdowns []func(context.Context) error
}

// stderr 为命令的错误输出，log.output 为 stderr 时日志写到这里
func newApp(ctx context.Context, cfg *appConfig, stderr io.Writer) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	logOpts := []clog.Option{clog.WithNamespace(serviceName), clog.WithTraceContext()}
	if stderr != nil && strings.EqualFold(cfg.Log.Output, "stderr") {
		logOpts = append(logOpts, clog.WithWriter(stderr))
	}
	a.logger, err = clog.New(&cfg.Log, logOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "init logger")
	}

	var traceShutdown trace.ShutdownFunc
	if cfg.Trace.Enabled {
		traceShutdown, err = trace.Init(&cfg.Trace.Config)
	} else {
		traceShutdown, err = trace.Discard(serviceName)
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "init trace")
	}
	a.shutdowns = append(a.shutdowns, traceShutdown)

	a.meter, err = metrics.New(&cfg.Metrics, metrics.WithLogger(a.logger))
	if err != nil {
		return nil, xerrors.Wrap(err, "init metrics")
	}
	a.shutdowns = append(a.shutdowns, a.meter.Shutdown)

	opts := []kv.Option{kv.WithLogger(a.logger), kv.WithMeter(a.meter)}
	if cfg.Breaker.Enabled {
		brk, err := breaker.New(&cfg.Breaker.Config, breaker.WithLogger(a.logger), breaker.WithMeter(a.meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "init breaker")
		}
		opts = append(opts, kv.WithBreaker(brk))
	}

	switch cfg.KV.Backend {
	case "", backendHTTP:
		a.store, err = kv.NewHTTP(&cfg.KV.HTTPConfig, opts...)
	case backendEtcd:
		a.store, err = a.newEtcdStore(ctx, opts)
	default:
		err = xerrors.Wrapf(xerrors.ErrInvalidInput, "unknown kv backend %q", cfg.KV.Backend)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) newEtcdStore(ctx context.Context, opts []kv.Option) (kv.Store, error) {
	conn, err := connector.NewEtcd(&a.cfg.KV.Etcd, connector.WithLogger(a.logger), connector.WithMeter(a.meter))
	if err != nil {
		return nil, err
	}
	a.shutdowns = append(a.shutdowns, func(context.Context) error { return conn.Close() })
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	return kv.NewEtcd(conn, &kv.EtcdConfig{Root: a.cfg.KV.Root, Timeout: a.cfg.KV.Timeout}, opts...)
}

func (a *app) registrar() (registry.Registrar, error) {
	return registry.NewRegistrar(a.store, &a.cfg.Registry, registry.WithLogger(a.logger))
}

// Close 按创建的逆序释放资源
func (a *app) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		errs = append(errs, a.shutdowns[i](ctx))
	}
	if a.logger != nil {
		a.logger.Flush()
	}
	return xerrors.Combine(errs...)
}
