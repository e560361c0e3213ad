package testkit

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/gin-gonic/gin"
)

// Gateway 内存版 etcd v3 JSON 网关，用于在没有 etcd 的环境下测试 HTTP 客户端
//
// 支持 /v3/kv/put、/v3/kv/range、/v3/kv/deleterange、/v3/kv/txn（仅 version 比较 + put）
// 与 GET /version，线路格式与 etcd 一致：bytes 为 base64，int64 为字符串，零值省略。
type Gateway struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	tree     *redblacktree.Tree // string -> *record
	revision int64

	requests   atomic.Int64
	lastHeader atomic.Value // http.Header

	injectMu     sync.Mutex
	injectStatus int
	injectBody   string
}

type record struct {
	value          []byte
	createRevision int64
	modRevision    int64
	version        int64
}

type gwHeader struct {
	ClusterID string `json:"cluster_id"`
	MemberID  string `json:"member_id"`
	Revision  string `json:"revision"`
	RaftTerm  string `json:"raft_term"`
}

type gwKeyValue struct {
	Key            string `json:"key"`
	Value          string `json:"value,omitempty"`
	CreateRevision string `json:"create_revision,omitempty"`
	ModRevision    string `json:"mod_revision,omitempty"`
	Version        string `json:"version,omitempty"`
}

type gwRangeRequest struct {
	Key      string `json:"key"`
	RangeEnd string `json:"range_end"`
}

type gwPutRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type gwCompare struct {
	Key     string `json:"key"`
	Result  string `json:"result"`
	Target  string `json:"target"`
	Version string `json:"version"`
}

type gwTxnRequest struct {
	Compare []gwCompare `json:"compare"`
	Success []struct {
		RequestPut *gwPutRequest `json:"request_put"`
	} `json:"success"`
}

// NewGateway 启动网关，测试结束时自动关闭
func NewGateway(t *testing.T) *Gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)

	g := &Gateway{tree: redblacktree.NewWithStringComparator(), revision: 1}

	r := gin.New()
	r.Use(trace.GatewayMiddleware("etcd-gateway"), g.observe)
	v3 := r.Group("/v3/kv")
	v3.POST("/put", g.handlePut)
	v3.POST("/range", g.handleRange)
	v3.POST("/deleterange", g.handleDeleteRange)
	v3.POST("/txn", g.handleTxn)
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"etcdserver": "3.5.17", "etcdcluster": "3.5.0"})
	})

	g.srv = httptest.NewServer(r)
	g.URL = g.srv.URL
	t.Cleanup(g.Close)
	return g
}

// Close 关闭网关
func (g *Gateway) Close() {
	g.srv.Close()
}

// Seed 直接写入一条记录，不计入请求数
func (g *Gateway) Seed(key string, value []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.put([]byte(key), value)
}

// Keys 返回当前全部键（升序）
func (g *Gateway) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, g.tree.Size())
	for _, k := range g.tree.Keys() {
		keys = append(keys, k.(string))
	}
	return keys
}

// Inject 让后续请求直接返回给定状态码与响应体；status 为 0 时恢复正常
func (g *Gateway) Inject(status int, body string) {
	g.injectMu.Lock()
	defer g.injectMu.Unlock()
	g.injectStatus, g.injectBody = status, body
}

// Requests 返回已处理的请求数
func (g *Gateway) Requests() int64 {
	return g.requests.Load()
}

// LastHeader 返回最近一次请求的请求头
func (g *Gateway) LastHeader() http.Header {
	h, _ := g.lastHeader.Load().(http.Header)
	return h
}

func (g *Gateway) observe(c *gin.Context) {
	g.requests.Add(1)
	g.lastHeader.Store(c.Request.Header.Clone())

	g.injectMu.Lock()
	status, body := g.injectStatus, g.injectBody
	g.injectMu.Unlock()
	if status != 0 {
		c.Data(status, "application/json", []byte(body))
		c.Abort()
		return
	}
	c.Next()
}

func (g *Gateway) handlePut(c *gin.Context) {
	var req gwPutRequest
	if !g.bind(c, &req) {
		return
	}
	key, value, ok := g.decodePair(c, req.Key, req.Value)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.put(key, value)
	c.JSON(http.StatusOK, gin.H{"header": g.header()})
}

func (g *Gateway) handleRange(c *gin.Context) {
	var req gwRangeRequest
	if !g.bind(c, &req) {
		return
	}
	key, end, ok := g.decodePair(c, req.Key, req.RangeEnd)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var kvs []gwKeyValue
	g.scan(key, end, func(k string, rec *record) {
		kvs = append(kvs, gwKeyValue{
			Key:            base64.StdEncoding.EncodeToString([]byte(k)),
			Value:          base64.StdEncoding.EncodeToString(rec.value),
			CreateRevision: strconv.FormatInt(rec.createRevision, 10),
			ModRevision:    strconv.FormatInt(rec.modRevision, 10),
			Version:        strconv.FormatInt(rec.version, 10),
		})
	})

	resp := gin.H{"header": g.header()}
	if len(kvs) > 0 {
		resp["kvs"] = kvs
		resp["count"] = strconv.Itoa(len(kvs))
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) handleDeleteRange(c *gin.Context) {
	var req gwRangeRequest
	if !g.bind(c, &req) {
		return
	}
	key, end, ok := g.decodePair(c, req.Key, req.RangeEnd)
	if !ok {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	var victims []string
	g.scan(key, end, func(k string, _ *record) { victims = append(victims, k) })
	for _, k := range victims {
		g.tree.Remove(k)
	}
	if len(victims) > 0 {
		g.revision++
	}

	resp := gin.H{"header": g.header()}
	if len(victims) > 0 {
		resp["deleted"] = strconv.Itoa(len(victims))
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) handleTxn(c *gin.Context) {
	var req gwTxnRequest
	if !g.bind(c, &req) {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	succeeded := true
	for _, cmp := range req.Compare {
		key, err := base64.StdEncoding.DecodeString(cmp.Key)
		if err != nil || cmp.Target != "VERSION" || cmp.Result != "GREATER" {
			g.fail(c, http.StatusBadRequest, 3, "unsupported compare")
			return
		}
		want, _ := strconv.ParseInt(cmp.Version, 10, 64)
		var version int64
		if v, found := g.tree.Get(string(key)); found {
			version = v.(*record).version
		}
		if version <= want {
			succeeded = false
		}
	}

	if succeeded {
		for _, op := range req.Success {
			if op.RequestPut == nil {
				continue
			}
			key, value, ok := g.decodePair(c, op.RequestPut.Key, op.RequestPut.Value)
			if !ok {
				return
			}
			g.put(key, value)
		}
	}

	resp := gin.H{"header": g.header()}
	if succeeded {
		resp["succeeded"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// put 调用方持有 g.mu
func (g *Gateway) put(key, value []byte) {
	g.revision++
	k := string(key)
	if v, found := g.tree.Get(k); found {
		rec := v.(*record)
		rec.value = bytes.Clone(value)
		rec.modRevision = g.revision
		rec.version++
		return
	}
	g.tree.Put(k, &record{
		value:          bytes.Clone(value),
		createRevision: g.revision,
		modRevision:    g.revision,
		version:        1,
	})
}

// scan 按 etcd 区间语义遍历：end 为空只取 key，end 为 "\x00" 取 key 之后全部
func (g *Gateway) scan(key, end []byte, fn func(k string, rec *record)) {
	if len(end) == 0 {
		if v, found := g.tree.Get(string(key)); found {
			fn(string(key), v.(*record))
		}
		return
	}
	all := bytes.Equal(end, []byte{0})
	it := g.tree.Iterator()
	for it.Next() {
		k := it.Key().(string)
		if k < string(key) {
			continue
		}
		if !all && k >= string(end) {
			break
		}
		fn(k, it.Value().(*record))
	}
}

func (g *Gateway) header() gwHeader {
	return gwHeader{
		ClusterID: "14841639068965178418",
		MemberID:  "10276657743932975437",
		Revision:  strconv.FormatInt(g.revision, 10),
		RaftTerm:  "2",
	}
}

func (g *Gateway) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		g.fail(c, http.StatusBadRequest, 3, err.Error())
		return false
	}
	return true
}

func (g *Gateway) decodePair(c *gin.Context, a, b string) ([]byte, []byte, bool) {
	x, err := base64.StdEncoding.DecodeString(a)
	if err != nil || len(x) == 0 {
		g.fail(c, http.StatusBadRequest, 3, "etcdserver: key is not provided")
		return nil, nil, false
	}
	y, err := base64.StdEncoding.DecodeString(b)
	if err != nil {
		g.fail(c, http.StatusBadRequest, 3, "illegal base64 data")
		return nil, nil, false
	}
	return x, y, true
}

func (g *Gateway) fail(c *gin.Context, status, code int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code, "message": msg})
}
