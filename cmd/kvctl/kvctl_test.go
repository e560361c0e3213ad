package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/registry"
	"github.com/ceyewan/kvdiscovery/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run 执行一次 kvctl，配置目录指向一个空的临时目录，返回标准输出
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := execute(t, args...)
	return out, err
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	err = cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), errOut.String(), err
}

func TestLogsGoToStderr(t *testing.T) {
	gw := testkit.NewGateway(t)
	out, logs, err := execute(t, "--endpoints="+gw.URL, "--log-level=debug", "put", "/config/a", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "OK revision=")
	assert.NotContains(t, out, "kv request done")
	assert.Contains(t, logs, "kv request done")
	assert.Contains(t, logs, "namespace=kvctl.kv")
}

func TestKVCommands(t *testing.T) {
	gw := testkit.NewGateway(t)
	ep := "--endpoints=" + gw.URL

	out, err := run(t, ep, "put", "/config/a", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "OK revision=")

	out, err = run(t, ep, "get", "/config/a")
	require.NoError(t, err)
	assert.Equal(t, "1", out)

	_, err = run(t, ep, "update", "/config/a", "2")
	require.NoError(t, err)
	_, err = run(t, ep, "update", "/config/missing", "2")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)

	_, err = run(t, ep, "put", "/config/b", "3")
	require.NoError(t, err)
	out, err = run(t, ep, "prefix", "/config/")
	require.NoError(t, err)
	assert.Equal(t, "/config/a\t2\n/config/b\t3", out)

	out, err = run(t, ep, "range", "--keys-only", "/config/a", "/config/b")
	require.NoError(t, err)
	assert.Equal(t, "/config/a", out)

	out, err = run(t, ep, "rm", "/config/a")
	require.NoError(t, err)
	assert.Equal(t, "deleted=1", out)

	out, err = run(t, ep, "server-version")
	require.NoError(t, err)
	assert.Contains(t, out, "etcdserver=3.5.17")
}

func TestRegistryCommands(t *testing.T) {
	gw := testkit.NewGateway(t)
	ep := "--endpoints=" + gw.URL

	out, err := run(t, ep, "-n", "/micro/registry", "register", "go.micro.learning.sum", "10.0.0.5:8080", "--meta", "zone=a")
	require.NoError(t, err)
	key := out
	assert.True(t, strings.HasPrefix(key, "/micro/registry/go.micro.learning.sum/go.micro.learning.sum-"), key)

	out, err = run(t, ep, "-n", "/micro/registry", "discover", "go.micro.learning.sum")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:8080", out)

	out, err = run(t, ep, "-n", "/micro/registry", "discover", "--all", "go.micro.learning.sum")
	require.NoError(t, err)
	assert.Contains(t, out, "\t10.0.0.5:8080")

	// 默认命名空间下找不到
	_, err = run(t, ep, "discover", "go.micro.learning.sum")
	assert.ErrorIs(t, err, registry.ErrServiceNotFound)

	_, err = run(t, ep, "-n", "/micro/registry", "deregister", key)
	require.NoError(t, err)
	_, err = run(t, ep, "-n", "/micro/registry", "discover", "go.micro.learning.sum")
	assert.ErrorIs(t, err, registry.ErrServiceNotFound)

	_, err = run(t, ep, "register", "svc", "a:1", "--meta", "novalue")
	assert.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	gw := testkit.NewGateway(t)
	gw.Seed("/app/registry/svc/svc-"+registry.MinUUID, []byte(`{"name":"svc","nodes":[{"id":"n1","address":"10.0.0.1:80"}]}`))

	dir := t.TempDir()
	yaml := "kv:\n  endpoint: " + gw.URL + "\n  root: /app\nregistry:\n  namespace: /registry\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kvctl.yaml"), []byte(yaml), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config-dir", dir, "discover", "svc"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Equal(t, "10.0.0.1:80", strings.TrimSpace(out.String()))
}

func TestUnknownBackend(t *testing.T) {
	_, err := run(t, "--backend", "zookeeper", "get", "/a")
	assert.Error(t, err)
}

func TestParseMetadata(t *testing.T) {
	md, err := parseMetadata([]string{"zone=a", "weight=10", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"zone": "a", "weight": "10", "empty": ""}, md)

	md, err = parseMetadata(nil)
	require.NoError(t, err)
	assert.Nil(t, md)

	_, err = parseMetadata([]string{"=v"})
	assert.Error(t, err)
}
