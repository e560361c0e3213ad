package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ceyewan/kvdiscovery/clog"

	grpcresolver "google.golang.org/grpc/resolver"
)

// resolveTimeout gRPC 触发的单次解析超时
const resolveTimeout = 5 * time.Second

// ResolverBuilder 实现 gRPC resolver.Builder
//
// 每次 Build/ResolveNow 都做一次 Lookup 并全量推送地址，不做 watch。
// gRPC 在连接失败时会调用 ResolveNow，由此完成轮询式刷新。
type ResolverBuilder struct {
	resolver Resolver
	scheme   string
	logger   clog.Logger
}

// NewResolverBuilder 创建 gRPC resolver builder，目标格式为 {scheme}:///{service}
func NewResolverBuilder(r Resolver, scheme string, opts ...Option) *ResolverBuilder {
	o := applyOptions(opts)
	if scheme == "" {
		scheme = "micro"
	}
	return &ResolverBuilder{resolver: r, scheme: scheme, logger: o.logger}
}

// Build 创建 resolver 并同步完成首次解析
func (b *ResolverBuilder) Build(target grpcresolver.Target, cc grpcresolver.ClientConn, _ grpcresolver.BuildOptions) (grpcresolver.Resolver, error) {
	serviceName := target.Endpoint()
	if serviceName == "" {
		serviceName = strings.TrimPrefix(target.URL.Path, "/")
	}
	r := &grpcResolver{
		resolver:    b.resolver,
		logger:      b.logger,
		serviceName: serviceName,
		cc:          cc,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.resolve()
	return r, nil
}

// Scheme 返回 scheme
func (b *ResolverBuilder) Scheme() string {
	return b.scheme
}

type grpcResolver struct {
	resolver    Resolver
	logger      clog.Logger
	serviceName string
	cc          grpcresolver.ClientConn

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // 串行化 resolve

	// closeMu 保护 closed 与 wg.Add，保证 Close 的 Wait 之后不再有 Add
	closeMu sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

func (r *grpcResolver) resolve() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.ctx, resolveTimeout)
	defer cancel()

	nodes, err := r.resolver.Lookup(ctx, r.serviceName)
	if err != nil {
		r.logger.Warn("grpc resolve failed",
			clog.String("service_name", r.serviceName),
			clog.Error(err))
		r.cc.ReportError(err)
		return
	}

	seen := make(map[string]struct{}, len(nodes))
	addrs := make([]grpcresolver.Address, 0, len(nodes))
	for _, n := range nodes {
		addr := parseEndpoint(n.Address)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, grpcresolver.Address{Addr: addr, ServerName: r.serviceName})
	}

	if err := r.cc.UpdateState(grpcresolver.State{Addresses: addrs}); err != nil {
		r.logger.Error("failed to update resolver state",
			clog.String("service_name", r.serviceName),
			clog.Error(err))
		return
	}
	r.logger.Debug("grpc resolver updated",
		clog.String("service_name", r.serviceName),
		clog.Int("count", len(addrs)))
}

// ResolveNow 异步重新解析
func (r *grpcResolver) ResolveNow(grpcresolver.ResolveNowOptions) {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.resolve()
	}()
}

// Close 取消进行中的解析并等待其退出
func (r *grpcResolver) Close() {
	r.closeMu.Lock()
	r.closed = true
	r.closeMu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// parseEndpoint 去掉地址中的协议前缀
// 支持格式: grpc://host:port, http://host:port, host:port
func parseEndpoint(endpoint string) string {
	for _, scheme := range []string{"grpc://", "http://", "https://"} {
		endpoint = strings.TrimPrefix(endpoint, scheme)
	}
	return endpoint
}
