package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ceyewan/kvdiscovery/xerrors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil", cfg: nil, wantErr: true},
		{name: "default", cfg: DefaultConfig("kvctl")},
		{name: "simple batcher", cfg: &Config{ServiceName: "kvctl", Endpoint: "x", Batcher: BatcherSimple}},
		{name: "missing service", cfg: &Config{Endpoint: "localhost:4317"}, wantErr: true},
		{name: "missing endpoint", cfg: &Config{ServiceName: "kvctl"}, wantErr: true},
		{name: "bad sampler", cfg: &Config{ServiceName: "kvctl", Endpoint: "x", Sampler: 1.5}, wantErr: true},
		{name: "bad batcher", cfg: &Config{ServiceName: "kvctl", Endpoint: "x", Batcher: "async"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
				return
			}
			assert.NoError(t, err)
		})
	}
}

// 客户端注入的 traceparent 应被网关中间件继续使用
func TestGatewayMiddlewareJoinsClientTrace(t *testing.T) {
	shutdown, err := Discard("kvctl-test")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	gin.SetMode(gin.TestMode)
	var server oteltrace.SpanContext
	r := gin.New()
	r.Use(GatewayMiddleware("etcd-gateway"))
	r.POST("/v3/kv/range", func(c *gin.Context) {
		server = oteltrace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	ctx, span := Tracer().Start(context.Background(), "kv.range")
	defer span.End()
	req := httptest.NewRequest(http.MethodPost, "/v3/kv/range", nil)
	InjectHTTP(ctx, req.Header)
	require.NotEmpty(t, req.Header.Get("traceparent"))

	r.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, server.IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), server.TraceID())
	assert.NotEqual(t, span.SpanContext().SpanID(), server.SpanID())
}
