package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/metrics"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
)

// healthKey 健康检查读取的键，只取计数不取值
const healthKey = "/__kvdiscovery/health"

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	healthy atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex

	attempts metrics.Counter
	active   metrics.Gauge
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会阻塞等待连接建立，真正的可达性由 Connect 探测。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, o := range opts {
		o(opt)
	}

	conn := &etcdConnector{
		cfg:    &c,
		logger: opt.logger.With(clog.String("connector", "etcd"), clog.String("name", c.Name)),
	}

	var err error
	conn.attempts, err = opt.meter.Counter(
		"connector_etcd_connect_total",
		"Etcd connection attempts by outcome",
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "create connect counter")
	}
	conn.active, err = opt.meter.Gauge(
		"connector_etcd_active_connections",
		"Number of active Etcd connections",
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "create active connections gauge")
	}

	clientConfig := clientv3.Config{
		Endpoints:            c.Endpoints,
		DialTimeout:          c.DialTimeout,
		DialKeepAliveTime:    c.KeepAliveTime,
		DialKeepAliveTimeout: c.KeepAliveTimeout,
		Username:             c.Username,
		Password:             c.Password,
	}
	if c.EnableTracing {
		clientConfig.DialOptions = append(clientConfig.DialOptions,
			grpc.WithStatsHandler(trace.GRPCClientStatsHandler()))
	}

	client, err := clientv3.New(clientConfig)
	if err != nil {
		return nil, xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.Name, err)
	}
	conn.client = client
	return conn, nil
}

// Connect 建立连接
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if c.healthy.Load() {
		return nil
	}

	c.logger.Info("attempting to connect to etcd", clog.Any("endpoints", c.cfg.Endpoints))

	if err := c.ping(ctx, c.cfg.ConnectTimeout); err != nil {
		c.attempts.Inc(ctx, metrics.L("connector", c.cfg.Name), metrics.L(metrics.LabelOutcome, metrics.OutcomeError))
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	c.attempts.Inc(ctx, metrics.L("connector", c.cfg.Name), metrics.L(metrics.LabelOutcome, metrics.OutcomeSuccess))
	c.active.Set(ctx, 1, metrics.L("connector", c.cfg.Name))
	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return nil
	}
	c.healthy.Store(false)
	c.active.Set(context.Background(), 0, metrics.L("connector", c.cfg.Name))

	c.logger.Info("closing etcd connection")
	if err := c.client.Close(); err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if err := c.ping(ctx, c.cfg.ConnectTimeout); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "etcd connector[%s]: %v", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy 返回缓存的健康状态
func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

// Name 返回连接器名称
func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	if c.closed.Load() {
		return nil
	}
	return c.client
}

func (c *etcdConnector) ping(ctx context.Context, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.client.Get(pingCtx, healthKey, clientv3.WithCountOnly())
	return err
}
