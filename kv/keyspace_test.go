package kv

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoot(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"/", ""},
		{"app", "/app"},
		{"/app/", "/app"},
		{" /a/b// ", "/a/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeRoot(tt.in), "root %q", tt.in)
	}
}

func TestKeyspace(t *testing.T) {
	ks := newKeyspace("/micro")
	assert.Equal(t, "/micro/registry/a", string(ks.full([]byte("/registry/a"))))
	assert.Equal(t, "/registry/a", string(ks.strip([]byte("/micro/registry/a"))))
	assert.Nil(t, ks.rangeEnd(nil))
	assert.Equal(t, "/micro/z", string(ks.rangeEnd([]byte("/z"))))
	// 取 start 之后全部键时不越过前缀
	assert.Equal(t, "/micrp", string(ks.rangeEnd([]byte{0})))

	start, end := ks.prefixRange([]byte("/registry/"))
	assert.Equal(t, "/micro/registry/", string(start))
	assert.Equal(t, "/micro/registry0", string(end))

	bare := newKeyspace("")
	start, end = bare.prefixRange(nil)
	assert.Equal(t, []byte{0}, start)
	assert.Equal(t, []byte{0}, end)
	assert.Equal(t, "k", string(bare.strip([]byte("k"))))
}

func TestWireInt64(t *testing.T) {
	var resp rangeResponse
	require.NoError(t, json.Unmarshal([]byte(`{"header":{"revision":"42"},"count":3}`), &resp))
	assert.EqualValues(t, 42, resp.Header.Revision)
	assert.EqualValues(t, 3, resp.Count)

	resp = rangeResponse{}
	require.NoError(t, json.Unmarshal([]byte(`{"header":{"revision":"7"}}`), &resp))
	assert.EqualValues(t, 0, resp.Count)

	assert.Error(t, json.Unmarshal([]byte(`{"count":"many"}`), &resp))
}

func TestWireKeyValueDecode(t *testing.T) {
	w := wireKeyValue{
		Key:         encodeBytes([]byte("/micro/a")),
		Value:       encodeBytes([]byte(`{"name":"a"}`)),
		ModRevision: 5,
		Version:     2,
	}
	kv, err := w.toKeyValue(newKeyspace("/micro"))
	require.NoError(t, err)
	assert.Equal(t, "/a", string(kv.Key))
	assert.Equal(t, `{"name":"a"}`, string(kv.Value))
	assert.EqualValues(t, 5, kv.ModRevision)
	assert.EqualValues(t, 2, kv.Version)

	w.Value = "%%%"
	_, err = w.toKeyValue(newKeyspace(""))
	assert.Error(t, err)
}

func TestHTTPConfigValidate(t *testing.T) {
	cfg := &HTTPConfig{Endpoint: "http://10.0.0.1:2379/", Root: "micro/"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "http://10.0.0.1:2379", cfg.Endpoint)
	assert.Equal(t, "v3", cfg.APIVersion)
	assert.Equal(t, "/micro", cfg.Root)
	assert.Equal(t, DefaultHTTPConfig().Timeout, cfg.Timeout)

	limited := &HTTPConfig{RateLimit: 0.5}
	require.NoError(t, limited.validate())
	assert.Equal(t, 1, limited.RateBurst)

	for _, bad := range []*HTTPConfig{
		{Endpoint: "127.0.0.1:2379"},
		{Endpoint: "ftp://127.0.0.1"},
		{Endpoint: "http://"},
		{Timeout: -1},
		{RateLimit: -1},
	} {
		assert.Error(t, bad.validate(), "endpoint %q", bad.Endpoint)
	}
}
