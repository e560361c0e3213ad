package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/trace"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// maxErrorBody 非 JSON 错误响应最多保留的字节数
const maxErrorBody = 512

// httpStore etcd v3 JSON 网关客户端
type httpStore struct {
	cfg       *HTTPConfig
	client    *http.Client
	ownClient bool
	headers   http.Header
	keys      keyspace
	limiter   *rate.Limiter
	ins       *instrument
}

// NewHTTP 创建基于 etcd JSON 网关的 Store
//
// cfg 为 nil 时使用 DefaultHTTPConfig。返回的 Store 并发安全。
func NewHTTP(cfg *HTTPConfig, opts ...Option) (Store, error) {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}

	ins, err := newInstrument("http", opt)
	if err != nil {
		return nil, err
	}

	s := &httpStore{
		cfg:     &c,
		client:  opt.httpClient,
		headers: make(http.Header, len(c.Headers)),
		keys:    newKeyspace(c.Root),
		ins:     ins,
	}
	if s.client == nil {
		s.client = &http.Client{}
		s.ownClient = true
	}
	for k, v := range c.Headers {
		s.headers.Set(k, v)
	}
	if c.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), c.RateBurst)
	}

	ins.logger.Info("kv http store created",
		clog.String("endpoint", c.Endpoint),
		clog.String("api_version", c.APIVersion),
		clog.String("root", c.Root),
		clog.Duration("timeout", c.Timeout))
	return s, nil
}

func (s *httpStore) Range(ctx context.Context, start, end []byte) (*RangeResult, error) {
	if len(start) == 0 {
		return nil, ErrInvalidKey
	}
	return s.rangeRaw(ctx, s.keys.full(start), s.keys.rangeEnd(end))
}

func (s *httpStore) Prefix(ctx context.Context, prefix []byte) (*RangeResult, error) {
	start, end := s.keys.prefixRange(prefix)
	return s.rangeRaw(ctx, start, end)
}

func (s *httpStore) rangeRaw(ctx context.Context, start, end []byte) (*RangeResult, error) {
	req := rangeRequest{Key: encodeBytes(start)}
	if end != nil {
		req.RangeEnd = encodeBytes(end)
	}

	var result *RangeResult
	err := s.ins.do(ctx, opRange, start, func(ctx context.Context) error {
		var resp rangeResponse
		if err := s.post(ctx, opRange, "/kv/range", req, &resp); err != nil {
			return err
		}
		// 单条记录解码失败只跳过该条，Count 仍按网关返回
		kvs := make([]*KeyValue, 0, len(resp.KVs))
		for i := range resp.KVs {
			kv, err := resp.KVs[i].toKeyValue(s.keys)
			if err != nil {
				s.ins.logger.WarnContext(ctx, "kv entry skipped",
					clog.String("op", opRange),
					clog.String("raw_key", resp.KVs[i].Key),
					clog.Error(malformedError(opRange, err)))
				continue
			}
			kvs = append(kvs, kv)
		}
		// count 为 0 时网关省略该字段
		count := int64(resp.Count)
		if count < int64(len(kvs)) {
			count = int64(len(kvs))
		}
		result = &RangeResult{Count: count, KVs: kvs, Revision: int64(resp.Header.Revision)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *httpStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	res, err := s.Range(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	if len(res.KVs) == 0 {
		if res.Count > 0 {
			return nil, xerrors.Wrapf(malformedError(opRange, errUndecodable), "key %q", key)
		}
		return nil, xerrors.Wrapf(ErrKeyNotFound, "key %q", key)
	}
	return res.KVs[0].Value, nil
}

func (s *httpStore) Put(ctx context.Context, key, value []byte) (*PutResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := s.keys.full(key)
	req := putRequest{Key: encodeBytes(full), Value: encodeBytes(value)}

	var result *PutResult
	err := s.ins.do(ctx, opPut, full, func(ctx context.Context) error {
		var resp putResponse
		if err := s.post(ctx, opPut, "/kv/put", req, &resp); err != nil {
			return err
		}
		result = &PutResult{Revision: int64(resp.Header.Revision)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update 使用事务：version(key) > 0 时写入
func (s *httpStore) Update(ctx context.Context, key, value []byte) (*PutResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := s.keys.full(key)
	encoded := encodeBytes(full)
	req := txnRequest{
		Compare: []txnCompare{{Key: encoded, Result: "GREATER", Target: "VERSION", Version: "0"}},
		Success: []txnRequestOp{{RequestPut: &putRequest{Key: encoded, Value: encodeBytes(value)}}},
	}

	var result *PutResult
	err := s.ins.do(ctx, opTxn, full, func(ctx context.Context) error {
		var resp txnResponse
		if err := s.post(ctx, opTxn, "/kv/txn", req, &resp); err != nil {
			return err
		}
		if !resp.Succeeded {
			return xerrors.Wrapf(ErrKeyNotFound, "key %q", key)
		}
		result = &PutResult{Revision: int64(resp.Header.Revision)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *httpStore) Delete(ctx context.Context, key []byte) (*DeleteResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := s.keys.full(key)
	req := deleteRangeRequest{Key: encodeBytes(full)}

	var result *DeleteResult
	err := s.ins.do(ctx, opDeleteRange, full, func(ctx context.Context) error {
		var resp deleteRangeResponse
		if err := s.post(ctx, opDeleteRange, "/kv/deleterange", req, &resp); err != nil {
			return err
		}
		result = &DeleteResult{Deleted: int64(resp.Deleted), Revision: int64(resp.Header.Revision)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *httpStore) Version(ctx context.Context) (*VersionInfo, error) {
	var info VersionInfo
	err := s.ins.do(ctx, opVersion, nil, func(ctx context.Context) error {
		return s.roundTrip(ctx, opVersion, http.MethodGet, s.cfg.Endpoint+"/version", nil, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *httpStore) Close() error {
	if s.ownClient {
		s.client.CloseIdleConnections()
	}
	return nil
}

func (s *httpStore) post(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return xerrors.Wrapf(err, "kv %s: encode request", op)
	}
	url := s.cfg.Endpoint + "/" + s.cfg.APIVersion + path
	return s.roundTrip(ctx, op, http.MethodPost, url, body, out)
}

// roundTrip 发送请求并按状态码分类错误
func (s *httpStore) roundTrip(ctx context.Context, op, method, url string, body []byte, out any) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return transportError(op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return xerrors.Wrapf(err, "kv %s: build request", op)
	}
	for k, v := range s.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	trace.InjectHTTP(ctx, req.Header)

	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()

	oteltrace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(op, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseStoreError(op, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformedError(op, err)
	}
	return nil
}

func parseStoreError(op string, status int, data []byte) error {
	se := &StoreError{Op: op, HTTPStatus: status}
	var ge gatewayError
	if err := json.Unmarshal(data, &ge); err == nil && (ge.Message != "" || ge.Error != "") {
		se.GRPCCode = ge.Code
		se.Message = ge.Message
		if se.Message == "" {
			se.Message = ge.Error
		}
		return se
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	se.Message = msg
	return se
}

var _ Store = (*httpStore)(nil)
