package connector

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEtcdConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EtcdConfig
		wantErr bool
	}{
		{name: "ok", cfg: EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}},
		{name: "no endpoints", cfg: EtcdConfig{}, wantErr: true},
		{name: "empty endpoint", cfg: EtcdConfig{Endpoints: []string{""}}, wantErr: true},
		{name: "username only", cfg: EtcdConfig{Endpoints: []string{"e:2379"}, Username: "root"}, wantErr: true},
		{name: "with auth", cfg: EtcdConfig{Endpoints: []string{"e:2379"}, Username: "root", Password: "pw"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "default", tt.cfg.Name)
			assert.Equal(t, 5*time.Second, tt.cfg.DialTimeout)
			assert.Equal(t, 10*time.Second, tt.cfg.KeepAliveTime)
		})
	}
}

func TestNewEtcdRejectsBadConfig(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewEtcdLazyDial(t *testing.T) {
	// 客户端创建不等待拨号，Connect 才会探测
	conn, err := NewEtcd(&EtcdConfig{
		Name:           "unreachable",
		Endpoints:      []string{"127.0.0.1:1"},
		ConnectTimeout: 200 * time.Millisecond,
		EnableTracing:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "unreachable", conn.Name())
	assert.False(t, conn.IsHealthy())
	assert.NotNil(t, conn.GetClient())

	err = conn.Connect(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, conn.IsHealthy())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.Connect(context.Background()), ErrAlreadyClosed)
	assert.ErrorIs(t, conn.HealthCheck(context.Background()), ErrAlreadyClosed)
}

func TestEtcdIntegration(t *testing.T) {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("ETCD_ENDPOINTS not set")
	}
	conn, err := NewEtcd(&EtcdConfig{Endpoints: strings.Split(endpoints, ",")})
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())
	require.NoError(t, conn.HealthCheck(ctx))
}
