package kv

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/ceyewan/kvdiscovery/breaker"
	"github.com/ceyewan/kvdiscovery/testkit"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTTPStore(t *testing.T, gw *testkit.Gateway, mutate func(*HTTPConfig), opts ...Option) Store {
	t.Helper()
	kit := testkit.NewKit(t)
	cfg := &HTTPConfig{Endpoint: gw.URL, Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(cfg)
	}
	opts = append([]Option{WithLogger(kit.Logger), WithMeter(kit.Meter)}, opts...)
	store, err := NewHTTP(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHTTPPutGet(t *testing.T) {
	gw := testkit.NewGateway(t)
	store := newHTTPStore(t, gw, nil)
	ctx := context.Background()

	first, err := store.Put(ctx, []byte("/config/a"), []byte("1"))
	require.NoError(t, err)
	second, err := store.Put(ctx, []byte("/config/a"), []byte("2"))
	require.NoError(t, err)
	assert.Greater(t, second.Revision, first.Revision)

	val, err := store.Get(ctx, []byte("/config/a"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(val))

	_, err = store.Get(ctx, []byte("/config/missing"))
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// 空值是合法的
	_, err = store.Put(ctx, []byte("/config/empty"), nil)
	require.NoError(t, err)
	val, err = store.Get(ctx, []byte("/config/empty"))
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestHTTPRange(t *testing.T) {
	gw := testkit.NewGateway(t)
	for _, k := range []string{"/r/a", "/r/b", "/r/c", "/s/a"} {
		gw.Seed(k, []byte("v"+k))
	}
	store := newHTTPStore(t, gw, nil)
	ctx := context.Background()

	res, err := store.Range(ctx, []byte("/r/a"), []byte("/r/c"))
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Count)
	assert.Equal(t, "/r/a", string(res.KVs[0].Key))
	assert.Equal(t, "/r/b", string(res.KVs[1].Key))
	assert.Equal(t, "v/r/b", string(res.KVs[1].Value))
	assert.EqualValues(t, 1, res.KVs[0].Version)
	assert.Positive(t, res.Revision)

	// 空区间不是错误
	res, err = store.Range(ctx, []byte("/x/"), []byte("/x0"))
	require.NoError(t, err)
	assert.Zero(t, res.Count)
	assert.Empty(t, res.KVs)

	res, err = store.Prefix(ctx, []byte("/r/"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Count)

	res, err = store.Prefix(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Count)

	_, err = store.Range(ctx, nil, []byte("/z"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestHTTPRoot(t *testing.T) {
	gw := testkit.NewGateway(t)
	gw.Seed("/other/k", []byte("outside"))
	store := newHTTPStore(t, gw, func(c *HTTPConfig) { c.Root = "app/" })
	ctx := context.Background()

	_, err := store.Put(ctx, []byte("/k"), []byte("inside"))
	require.NoError(t, err)
	assert.Contains(t, gw.Keys(), "/app/k")

	res, err := store.Prefix(ctx, []byte("/"))
	require.NoError(t, err)
	require.Len(t, res.KVs, 1)
	assert.Equal(t, "/k", string(res.KVs[0].Key))
}

func TestHTTPUpdate(t *testing.T) {
	gw := testkit.NewGateway(t)
	store := newHTTPStore(t, gw, nil)
	ctx := context.Background()

	_, err := store.Update(ctx, []byte("/u"), []byte("x"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.NotContains(t, gw.Keys(), "/u")

	_, err = store.Put(ctx, []byte("/u"), []byte("x"))
	require.NoError(t, err)
	_, err = store.Update(ctx, []byte("/u"), []byte("y"))
	require.NoError(t, err)

	val, err := store.Get(ctx, []byte("/u"))
	require.NoError(t, err)
	assert.Equal(t, "y", string(val))
}

func TestHTTPDelete(t *testing.T) {
	gw := testkit.NewGateway(t)
	gw.Seed("/d", []byte("1"))
	store := newHTTPStore(t, gw, nil)
	ctx := context.Background()

	res, err := store.Delete(ctx, []byte("/d"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Deleted)

	res, err = store.Delete(ctx, []byte("/d"))
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)

	_, err = store.Delete(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestHTTPVersion(t *testing.T) {
	gw := testkit.NewGateway(t)
	store := newHTTPStore(t, gw, nil)

	info, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.5.17", info.Server)
	assert.Equal(t, "3.5.0", info.Cluster)
}

func TestHTTPHeadersAndTracePropagation(t *testing.T) {
	shutdown, err := trace.Discard("kv-test")
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	gw := testkit.NewGateway(t)
	store := newHTTPStore(t, gw, func(c *HTTPConfig) {
		c.Headers = map[string]string{"Host-Alias": "localhost", "Authorization": "Bearer t"}
	})

	_, err = store.Get(context.Background(), []byte("/h"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	h := gw.LastHeader()
	assert.Equal(t, "localhost", h.Get("Host-Alias"))
	assert.Equal(t, "Bearer t", h.Get("Authorization"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.NotEmpty(t, h.Get("Traceparent"))
}

func TestHTTPErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("gateway error", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		gw.Inject(http.StatusServiceUnavailable, `{"error":"etcdserver: no leader","code":14,"message":"etcdserver: no leader"}`)

		_, err := store.Range(ctx, []byte("/a"), nil)
		require.ErrorIs(t, err, ErrStore)
		var se *StoreError
		require.True(t, xerrors.As(err, &se))
		assert.Equal(t, http.StatusServiceUnavailable, se.HTTPStatus)
		assert.Equal(t, 14, se.GRPCCode)
		assert.Equal(t, "etcdserver: no leader", se.Message)
		assert.Equal(t, "STORE_ERROR", xerrors.GetCode(err))
	})

	t.Run("plain text error", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		gw.Inject(http.StatusBadGateway, "upstream down")

		_, err := store.Put(ctx, []byte("/a"), []byte("1"))
		var se *StoreError
		require.True(t, xerrors.As(err, &se))
		assert.Equal(t, "upstream down", se.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		gw.Inject(http.StatusOK, "<html>")

		_, err := store.Range(ctx, []byte("/a"), nil)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("bad base64", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		gw.Inject(http.StatusOK, `{"kvs":[{"key":"L2E=","value":"***"}],"count":"1"}`)

		res, err := store.Range(ctx, []byte("/a"), nil)
		require.NoError(t, err)
		assert.Empty(t, res.KVs)
		assert.EqualValues(t, 1, res.Count)

		_, err = store.Get(ctx, []byte("/a"))
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.NotErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("bad entry among good ones", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		// /a=1 可解码；第二条 value 不是 base64；第三条 key 不是 base64
		gw.Inject(http.StatusOK, `{"kvs":[`+
			`{"key":"L2E=","value":"MQ==","version":"1"},`+
			`{"key":"L2I=","value":"***"},`+
			`{"key":"!!","value":"MQ=="}],"count":"3"}`)

		res, err := store.Range(ctx, []byte("/a"), []byte("/z"))
		require.NoError(t, err)
		require.Len(t, res.KVs, 1)
		assert.Equal(t, "/a", string(res.KVs[0].Key))
		assert.Equal(t, "1", string(res.KVs[0].Value))
		assert.EqualValues(t, 3, res.Count)
	})

	t.Run("unreachable", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		gw.Close()

		_, err := store.Range(ctx, []byte("/a"), nil)
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("timeout", func(t *testing.T) {
		gw := testkit.NewGateway(t)
		store := newHTTPStore(t, gw, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := store.Range(cctx, []byte("/a"), nil)
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTPBreaker(t *testing.T) {
	gw := testkit.NewGateway(t)
	brk, err := breaker.New(&breaker.Config{MinimumRequests: 2, FailureRatio: 0.5, Timeout: time.Minute})
	require.NoError(t, err)
	store := newHTTPStore(t, gw, nil, WithBreaker(brk))
	ctx := context.Background()

	// 4xx 不计入熔断
	gw.Inject(http.StatusBadRequest, `{"error":"bad","code":3,"message":"bad"}`)
	for i := 0; i < 3; i++ {
		_, err := store.Range(ctx, []byte("/a"), nil)
		require.ErrorIs(t, err, ErrStore)
	}
	state, _ := brk.State(opRange)
	assert.Equal(t, breaker.StateClosed, state)

	gw.Inject(http.StatusInternalServerError, `{"error":"boom","code":2,"message":"boom"}`)
	// 3 次成功 + 3 次失败，失败率达到 0.5
	for i := 0; i < 3; i++ {
		_, _ = store.Range(ctx, []byte("/a"), nil)
	}
	state, _ = brk.State(opRange)
	require.Equal(t, breaker.StateOpen, state)

	before := gw.Requests()
	_, err = store.Range(ctx, []byte("/a"), nil)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, breaker.ErrOpenState)
	assert.Equal(t, before, gw.Requests())

	// 其他操作使用独立的熔断键
	gw.Inject(0, "")
	_, err = store.Put(ctx, []byte("/a"), []byte("1"))
	assert.NoError(t, err)
}

func TestHTTPRateLimit(t *testing.T) {
	gw := testkit.NewGateway(t)
	store := newHTTPStore(t, gw, func(c *HTTPConfig) {
		c.RateLimit = 1000
		c.RateBurst = 5
	})
	for i := 0; i < 10; i++ {
		_, err := store.Put(context.Background(), []byte("/rl"), []byte("v"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 10, gw.Requests())
}

func TestNewHTTPDefaults(t *testing.T) {
	store, err := NewHTTP(nil)
	require.NoError(t, err)
	assert.NoError(t, store.Close())

	_, err = NewHTTP(&HTTPConfig{Endpoint: "localhost:2379"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
