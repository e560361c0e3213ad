package testkit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/kvdiscovery/connector"
)

// EtcdEndpointsEnv 指定集成测试使用的 etcd 地址（逗号分隔）
const EtcdEndpointsEnv = "ETCD_ENDPOINTS"

// GetEtcdConfig 返回 Etcd 测试配置，未设置 ETCD_ENDPOINTS 时返回 nil
func GetEtcdConfig() *connector.EtcdConfig {
	endpoints := os.Getenv(EtcdEndpointsEnv)
	if endpoints == "" {
		return nil
	}
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 5 * time.Second,
	}
}

// GetEtcdConnector 获取已连接的 Etcd 连接器，没有可用 etcd 时跳过测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	cfg := GetEtcdConfig()
	if cfg == nil {
		t.Skipf("%s not set, skipping etcd integration test", EtcdEndpointsEnv)
	}
	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd connector: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	if err := conn.Connect(context.Background()); err != nil {
		t.Skipf("etcd not reachable: %v", err)
	}
	return conn
}
