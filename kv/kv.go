// Package kv 提供 etcd v3 键值存储客户端。
//
// 同一个 Store 契约有两种实现：
//   - NewHTTP: 通过 etcd v3 JSON 网关（/v3/kv/*）访问，键值在线路上以 base64 编码
//   - NewEtcd: 借用 connector.EtcdConnector 的 clientv3 gRPC 客户端
//
// 返回的 KeyValue.Value 已经完成线路解码，调用方拿到的是原始字节。
//
// 基本使用：
//
//	store, err := kv.NewHTTP(&kv.HTTPConfig{
//		Endpoint: "http://127.0.0.1:2379",
//	}, kv.WithLogger(logger), kv.WithMeter(meter))
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	_, err = store.Put(ctx, []byte("/config/feature"), []byte("on"))
//	val, err := store.Get(ctx, []byte("/config/feature"))
//
// 错误处理：
//
//	if errors.Is(err, kv.ErrKeyNotFound) { ... }
//	if errors.Is(err, kv.ErrTransport) { ... } // 网络不可达、超时、熔断
//	var se *kv.StoreError
//	if errors.As(err, &se) { ... }             // 服务端返回的错误
package kv

import "context"

// Ranger 按键区间读取，是服务发现唯一依赖的能力。
type Ranger interface {
	// Range 读取 [start, end) 内的所有键值。
	// end 为 nil 时只读取 start 这一个键；结果为空不是错误。
	Range(ctx context.Context, start, end []byte) (*RangeResult, error)
}

// Store etcd 键值存储客户端
type Store interface {
	Ranger

	// Put 写入键值，键不存在时创建
	Put(ctx context.Context, key, value []byte) (*PutResult, error)

	// Get 读取单个键的值，键不存在时返回 ErrKeyNotFound
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Update 仅当键已存在时覆盖其值，否则返回 ErrKeyNotFound
	Update(ctx context.Context, key, value []byte) (*PutResult, error)

	// Delete 删除单个键，键不存在时 Deleted 为 0
	Delete(ctx context.Context, key []byte) (*DeleteResult, error)

	// Prefix 读取以 prefix 开头的所有键值
	Prefix(ctx context.Context, prefix []byte) (*RangeResult, error)

	// Version 返回服务端版本信息
	Version(ctx context.Context) (*VersionInfo, error)

	// Close 释放客户端资源，不会关闭借用的连接
	Close() error
}

// KeyValue 单条键值记录
type KeyValue struct {
	Key            []byte
	Value          []byte
	CreateRevision int64
	ModRevision    int64
	Version        int64
}

// RangeResult 区间读取结果
type RangeResult struct {
	Count    int64
	KVs      []*KeyValue
	Revision int64
}

// PutResult 写入结果
type PutResult struct {
	Revision int64
}

// DeleteResult 删除结果
type DeleteResult struct {
	Deleted  int64
	Revision int64
}

// VersionInfo 服务端版本
type VersionInfo struct {
	Server  string `json:"etcdserver"`
	Cluster string `json:"etcdcluster"`
}
