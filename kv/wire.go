package kv

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// etcd JSON 网关的线路格式：bytes 字段为 base64，int64 字段为 JSON 字符串，
// 零值字段省略。

// wireInt64 兼容字符串与数字两种写法
type wireInt64 int64

func (v *wireInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return xerrors.Wrapf(err, "invalid int64 %s", b)
	}
	*v = wireInt64(n)
	return nil
}

// wireHeader 只解析 revision；cluster_id 与 member_id 是 uint64，可能超出 int64
type wireHeader struct {
	Revision wireInt64 `json:"revision"`
}

type wireKeyValue struct {
	Key            string    `json:"key"`
	Value          string    `json:"value"`
	CreateRevision wireInt64 `json:"create_revision"`
	ModRevision    wireInt64 `json:"mod_revision"`
	Version        wireInt64 `json:"version"`
	Lease          wireInt64 `json:"lease"`
}

type rangeRequest struct {
	Key      string `json:"key"`
	RangeEnd string `json:"range_end,omitempty"`
}

type rangeResponse struct {
	Header wireHeader     `json:"header"`
	KVs    []wireKeyValue `json:"kvs"`
	More   bool           `json:"more"`
	Count  wireInt64      `json:"count"`
}

type putRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type putResponse struct {
	Header wireHeader `json:"header"`
}

type deleteRangeRequest struct {
	Key      string `json:"key"`
	RangeEnd string `json:"range_end,omitempty"`
}

type deleteRangeResponse struct {
	Header  wireHeader `json:"header"`
	Deleted wireInt64  `json:"deleted"`
}

type txnCompare struct {
	Key     string `json:"key"`
	Result  string `json:"result"`
	Target  string `json:"target"`
	Version string `json:"version"`
}

type txnRequestOp struct {
	RequestPut *putRequest `json:"request_put,omitempty"`
}

type txnRequest struct {
	Compare []txnCompare   `json:"compare"`
	Success []txnRequestOp `json:"success"`
}

type txnResponse struct {
	Header    wireHeader `json:"header"`
	Succeeded bool       `json:"succeeded"`
}

// gatewayError grpc-gateway 的错误响应体
type gatewayError struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func encodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBytes(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// toKeyValue 解码单条记录并剥离 Root 前缀
func (w *wireKeyValue) toKeyValue(ks keyspace) (*KeyValue, error) {
	key, err := decodeBytes(w.Key)
	if err != nil {
		return nil, xerrors.Wrap(err, "decode key")
	}
	value, err := decodeBytes(w.Value)
	if err != nil {
		return nil, xerrors.Wrapf(err, "decode value of %q", key)
	}
	return &KeyValue{
		Key:            ks.strip(key),
		Value:          value,
		CreateRevision: int64(w.CreateRevision),
		ModRevision:    int64(w.ModRevision),
		Version:        int64(w.Version),
	}, nil
}
