// Package connector 管理 etcd clientv3 连接的生命周期。
//
// kv 组件的 clientv3 后端借用 EtcdConnector 提供的客户端访问 etcd，
// 与 HTTP 网关后端实现同一个 kv.Store 契约。
//
// 基本使用：
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	store, _ := kv.NewEtcd(conn, nil)
//
// 资源所有权：
//
//	Connector 拥有底层连接的生命周期，应通过 defer 确保 Close() 被调用。
//	kv.Store 仅借用 Connector，其 Close() 不会关闭底层客户端。
package connector

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 定义连接器的通用行为，方法均为并发安全。
type Connector interface {
	// Connect 建立连接并做一次探测，可重复调用。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，可重复调用。
	Close() error

	// HealthCheck 发送探测请求并更新缓存的健康状态。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次探测的结果。
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志与指标。
	Name() string
}

// TypedConnector 提供类型安全的客户端访问。
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端实例，Close() 之后返回 nil。
	GetClient() T
}

// EtcdConnector Etcd 连接器接口。
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
