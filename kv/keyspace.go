package kv

import (
	"bytes"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// keyspace 负责 Root 前缀的添加与剥离
type keyspace struct {
	root []byte
}

func newKeyspace(root string) keyspace {
	return keyspace{root: []byte(normalizeRoot(root))}
}

func (k keyspace) full(key []byte) []byte {
	if len(k.root) == 0 {
		return key
	}
	out := make([]byte, 0, len(k.root)+len(key))
	out = append(out, k.root...)
	return append(out, key...)
}

// rangeEnd 转换区间终点；"\x00" 表示 start 之后的全部键，在有前缀时收敛到前缀末尾
func (k keyspace) rangeEnd(end []byte) []byte {
	if end == nil {
		return nil
	}
	if len(k.root) > 0 && bytes.Equal(end, []byte{0}) {
		return []byte(clientv3.GetPrefixRangeEnd(string(k.root)))
	}
	return k.full(end)
}

// prefixRange 返回前缀对应的区间；无前缀时覆盖整个键空间
func (k keyspace) prefixRange(prefix []byte) (start, end []byte) {
	start = k.full(prefix)
	if len(start) == 0 {
		return []byte{0}, []byte{0}
	}
	return start, []byte(clientv3.GetPrefixRangeEnd(string(start)))
}

func (k keyspace) strip(key []byte) []byte {
	if len(k.root) == 0 {
		return key
	}
	return bytes.TrimPrefix(key, k.root)
}
