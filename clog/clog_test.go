package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/kvdiscovery/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// TestNew 测试 Logger 创建
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		opts    []Option
		wantErr bool
	}{
		{
			name:   "valid config",
			config: &Config{Level: "info", Format: "console", Output: "stdout"},
		},
		{
			name:   "nil config",
			config: nil,
		},
		{
			name:    "invalid level",
			config:  &Config{Level: "invalid", Format: "console", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  &Config{Level: "info", Format: "xml", Output: "stdout"},
			wantErr: true,
		},
		{
			name:   "json with options",
			config: &Config{Level: "debug", Format: "json", Output: "stdout"},
			opts: []Option{
				WithNamespace("kvctl", "registry"),
				WithTraceContext(),
			},
		},
		{
			name:    "unopenable file",
			config:  &Config{Output: "/nonexistent-dir/kvctl.log"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config, tt.opts...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts = append(opts, WithWriter(buf))
	logger, err := New(&Config{Level: level, Format: "json", Output: "stdout"}, opts...)
	require.NoError(t, err)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerJSONOutput(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("kvctl"))

	logger.With(String("endpoint", "http://127.0.0.1:2379")).
		WithNamespace("registry").
		Info("node selected", String("service_name", "go.micro.learning.sum"), Int("candidates", 2))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "node selected", rec["msg"])
	assert.Equal(t, "kvctl.registry", rec[NamespaceKey])
	assert.Equal(t, "http://127.0.0.1:2379", rec["endpoint"])
	assert.Equal(t, "go.micro.learning.sum", rec["service_name"])
	assert.EqualValues(t, 2, rec["candidates"])
}

func TestLoggerWithNamespaceDoesNotLeak(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithNamespace("kvctl"))

	_ = logger.WithNamespace("kv")
	logger.WithNamespace("registry").Info("a")
	logger.Info("b")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kvctl.registry", lines[0][NamespaceKey])
	assert.Equal(t, "kvctl", lines[1][NamespaceKey])
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	child := logger.WithNamespace("kv")
	logger.Info("dropped")
	logger.Warn("kept")
	logger.SetLevel(DebugLevel)
	child.Debug("now visible")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
}

func TestTraceContext(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithTraceContext())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "range request")
	logger.InfoContext(context.Background(), "no span")
	logger.Info("no context")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", lines[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", lines[0]["span_id"])
	assert.NotContains(t, lines[1], "trace_id")
	assert.NotContains(t, lines[2], "trace_id")
}

func TestErrorFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	err := errors.New("connection refused")
	logger.Error("range failed", Error(err), ErrorWithCode(err, "TRANSPORT"))
	logger.Warn("nil error", Error(nil), Duration("elapsed", time.Second), Float64("ratio", 0.5), Any("endpoints", []string{"a"}))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "connection refused", lines[0]["err_msg"])
	group, ok := lines[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "TRANSPORT", group["code"])
	assert.Equal(t, "connection refused", group["msg"])

	assert.NotContains(t, lines[1], "err_msg")
	assert.EqualValues(t, 0.5, lines[1]["ratio"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"debug": DebugLevel,
		"INFO":  InfoLevel,
		"Warn":  WarnLevel,
		"error": ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, strings.ToLower(in), got.String())
	}

	_, err := ParseLevel("fatal")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvctl.log")
	logger, err := New(&Config{Level: "info", Format: "json", Output: path, AddSource: true})
	require.NoError(t, err)

	logger.Info("written to file", String("key", "/registry/svc"))
	logger.Flush()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"/registry/svc"`)
	assert.Contains(t, string(data), `"caller":`)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Info("nothing")
	assert.Equal(t, logger, logger.WithNamespace("x"))
	assert.Equal(t, logger, logger.With(String("k", "v")))
	logger.SetLevel(DebugLevel)
	logger.Flush()
}
