package kv

import (
	"context"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/connector"
	"github.com/ceyewan/kvdiscovery/xerrors"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// etcdStore 基于 clientv3 的 Store，借用 Connector 的客户端
type etcdStore struct {
	conn connector.EtcdConnector
	cfg  EtcdConfig
	keys keyspace
	ins  *instrument
}

// NewEtcd 创建基于 clientv3 的 Store
//
// conn 的生命周期由调用方管理，Store.Close 不会关闭它。cfg 可以为 nil。
func NewEtcd(conn connector.EtcdConnector, cfg *EtcdConfig, opts ...Option) (Store, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "kv: etcd connector is nil")
	}
	var c EtcdConfig
	if cfg != nil {
		c = *cfg
	}
	c.Root = normalizeRoot(c.Root)
	if c.Timeout < 0 {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "kv: timeout must not be negative")
	}

	opt := defaultOptions()
	for _, o := range opts {
		o(opt)
	}
	ins, err := newInstrument("etcd", opt)
	if err != nil {
		return nil, err
	}

	ins.logger.Info("kv etcd store created",
		clog.String("connector", conn.Name()),
		clog.String("root", c.Root))
	return &etcdStore{conn: conn, cfg: c, keys: newKeyspace(c.Root), ins: ins}, nil
}

func (s *etcdStore) client() (*clientv3.Client, error) {
	cli := s.conn.GetClient()
	if cli == nil {
		return nil, connector.ErrNotConnected
	}
	return cli, nil
}

func (s *etcdStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}
	return ctx, func() {}
}

func (s *etcdStore) Range(ctx context.Context, start, end []byte) (*RangeResult, error) {
	if len(start) == 0 {
		return nil, ErrInvalidKey
	}
	return s.rangeRaw(ctx, s.keys.full(start), s.keys.rangeEnd(end))
}

func (s *etcdStore) Prefix(ctx context.Context, prefix []byte) (*RangeResult, error) {
	start, end := s.keys.prefixRange(prefix)
	return s.rangeRaw(ctx, start, end)
}

func (s *etcdStore) rangeRaw(ctx context.Context, start, end []byte) (*RangeResult, error) {
	var ops []clientv3.OpOption
	if end != nil {
		ops = append(ops, clientv3.WithRange(string(end)))
	}

	var result *RangeResult
	err := s.ins.do(ctx, opRange, start, func(ctx context.Context) error {
		cli, err := s.client()
		if err != nil {
			return transportError(opRange, err)
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		resp, err := cli.Get(ctx, string(start), ops...)
		if err != nil {
			return classifyGRPC(opRange, err)
		}
		kvs := make([]*KeyValue, 0, len(resp.Kvs))
		for _, kv := range resp.Kvs {
			kvs = append(kvs, &KeyValue{
				Key:            s.keys.strip(kv.Key),
				Value:          kv.Value,
				CreateRevision: kv.CreateRevision,
				ModRevision:    kv.ModRevision,
				Version:        kv.Version,
			})
		}
		result = &RangeResult{Count: resp.Count, KVs: kvs, Revision: resp.Header.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	res, err := s.Range(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	if len(res.KVs) == 0 {
		return nil, xerrors.Wrapf(ErrKeyNotFound, "key %q", key)
	}
	return res.KVs[0].Value, nil
}

func (s *etcdStore) Put(ctx context.Context, key, value []byte) (*PutResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := s.keys.full(key)

	var result *PutResult
	err := s.ins.do(ctx, opPut, full, func(ctx context.Context) error {
		cli, err := s.client()
		if err != nil {
			return transportError(opPut, err)
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		resp, err := cli.Put(ctx, string(full), string(value))
		if err != nil {
			return classifyGRPC(opPut, err)
		}
		result = &PutResult{Revision: resp.Header.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) Update(ctx context.Context, key, value []byte) (*PutResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := string(s.keys.full(key))

	var result *PutResult
	err := s.ins.do(ctx, opTxn, []byte(full), func(ctx context.Context) error {
		cli, err := s.client()
		if err != nil {
			return transportError(opTxn, err)
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		resp, err := cli.Txn(ctx).
			If(clientv3.Compare(clientv3.Version(full), ">", 0)).
			Then(clientv3.OpPut(full, string(value))).
			Commit()
		if err != nil {
			return classifyGRPC(opTxn, err)
		}
		if !resp.Succeeded {
			return xerrors.Wrapf(ErrKeyNotFound, "key %q", key)
		}
		result = &PutResult{Revision: resp.Header.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *etcdStore) Delete(ctx context.Context, key []byte) (*DeleteResult, error) {
	if len(key) == 0 {
		return nil, ErrInvalidKey
	}
	full := s.keys.full(key)

	var result *DeleteResult
	err := s.ins.do(ctx, opDeleteRange, full, func(ctx context.Context) error {
		cli, err := s.client()
		if err != nil {
			return transportError(opDeleteRange, err)
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		resp, err := cli.Delete(ctx, string(full))
		if err != nil {
			return classifyGRPC(opDeleteRange, err)
		}
		result = &DeleteResult{Deleted: resp.Deleted, Revision: resp.Header.Revision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Version 查询客户端第一个端点的状态
func (s *etcdStore) Version(ctx context.Context) (*VersionInfo, error) {
	var info *VersionInfo
	err := s.ins.do(ctx, opVersion, nil, func(ctx context.Context) error {
		cli, err := s.client()
		if err != nil {
			return transportError(opVersion, err)
		}
		endpoints := cli.Endpoints()
		if len(endpoints) == 0 {
			return transportError(opVersion, xerrors.New("no endpoints"))
		}
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		resp, err := cli.Status(ctx, endpoints[0])
		if err != nil {
			return classifyGRPC(opVersion, err)
		}
		info = &VersionInfo{Server: resp.Version, Cluster: resp.Version}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Close 不关闭借用的 Connector
func (s *etcdStore) Close() error {
	return nil
}

// grpcCoder 由 rpctypes.EtcdError 实现
type grpcCoder interface {
	Code() codes.Code
}

// classifyGRPC 将 clientv3 错误映射到 kv 错误分类
func classifyGRPC(op string, err error) error {
	if xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded) {
		return transportError(op, err)
	}
	var (
		code codes.Code
		msg  string
	)
	var ec grpcCoder
	if xerrors.As(err, &ec) {
		code, msg = ec.Code(), err.Error()
	} else if st, ok := status.FromError(err); ok {
		code, msg = st.Code(), st.Message()
	} else {
		return transportError(op, err)
	}
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return transportError(op, err)
	default:
		return &StoreError{Op: op, GRPCCode: int(code), Message: msg}
	}
}

var _ Store = (*etcdStore)(nil)
