package trace

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/stats"
)

// InjectHTTP 把当前 Span 写入网关请求头（W3C traceparent）
func InjectHTTP(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

// GatewayMiddleware 网关侧的 gin 中间件，Span 名为 "gateway <路由>"
//
// 与 kv 客户端的 "kv.<op>" Span 同属一条 trace。
func GatewayMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithSpanNameFormatter(func(c *gin.Context) string {
		if route := c.FullPath(); route != "" {
			return "gateway " + route
		}
		return "gateway " + c.Request.URL.Path
	}))
}

// GRPCClientStatsHandler etcd clientv3 连接使用的 gRPC 链路处理器
func GRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler()
}
