package registry

import (
	"context"
	"strings"

	"github.com/ceyewan/kvdiscovery/clog"
	"github.com/ceyewan/kvdiscovery/kv"
	"github.com/ceyewan/kvdiscovery/xerrors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentPuts 一次注册中并发写入的上限
const maxConcurrentPuts = 8

// Registrar 一次性写入注册记录
//
// 没有租约也没有续约：记录会一直保留，直到 Deregister 或被外部删除。
type Registrar interface {
	// Register 为服务的每个节点写入一条记录，返回写入的键
	//
	// 节点 ID 为空时生成 {name}-{uuid}；非空时必须是该格式。
	Register(ctx context.Context, svc *Service) ([]string, error)

	// Deregister 删除一条注册记录
	Deregister(ctx context.Context, key string) error
}

type registrar struct {
	store  kv.Store
	cfg    Config
	codec  Codec
	logger clog.Logger
}

// NewRegistrar 创建 Registrar
func NewRegistrar(store kv.Store, cfg *Config, opts ...Option) (Registrar, error) {
	if store == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "registry: kv store is required")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &registrar{store: store, cfg: c, codec: o.codec, logger: o.logger}, nil
}

func (r *registrar) Register(ctx context.Context, svc *Service) ([]string, error) {
	if svc == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "service is nil")
	}
	if err := validateName(svc.Name); err != nil {
		return nil, err
	}
	if len(svc.Nodes) == 0 {
		return nil, xerrors.Wrapf(ErrInvalidArgument, "service %q has no nodes", svc.Name)
	}

	// go-micro 每个节点一条记录，记录内只含该节点
	type entry struct {
		key   string
		value []byte
		node  *Node
	}
	entries := make([]entry, 0, len(svc.Nodes))
	for _, node := range svc.Nodes {
		if node == nil || node.Address == "" {
			return nil, xerrors.Wrapf(ErrInvalidArgument, "service %q has a node without address", svc.Name)
		}
		id, err := r.instanceID(svc.Name, node.ID)
		if err != nil {
			return nil, err
		}
		key, err := BuildKey(r.cfg.Namespace, svc.Name, id)
		if err != nil {
			return nil, err
		}

		n := *node
		n.ID = svc.Name + "-" + id
		record := *svc
		record.Nodes = []*Node{&n}
		value, err := r.codec.Marshal(&record)
		if err != nil {
			return nil, xerrors.Wrapf(err, "registry: encode service %q", svc.Name)
		}
		entries = append(entries, entry{key: key, value: value, node: &n})
	}

	// 节点之间互不依赖，并发写入；任一失败时回滚已写入的记录
	written := make([]bool, len(entries))
	var g errgroup.Group
	g.SetLimit(maxConcurrentPuts)
	for i, e := range entries {
		g.Go(func() error {
			if _, err := r.store.Put(ctx, []byte(e.key), e.value); err != nil {
				return xerrors.Wrapf(err, "registry: put %s", e.key)
			}
			written[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "failed to register service",
			clog.String("service_name", svc.Name),
			clog.Error(err))
		for i, e := range entries {
			if written[i] {
				_, _ = r.store.Delete(context.WithoutCancel(ctx), []byte(e.key))
			}
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.key)
		r.logger.InfoContext(ctx, "service node registered",
			clog.String("service_name", svc.Name),
			clog.String("node_id", e.node.ID),
			clog.String("key", e.key))
	}
	return keys, nil
}

// instanceID 返回节点 ID 中的 uuid 部分
func (r *registrar) instanceID(name, nodeID string) (string, error) {
	if nodeID == "" {
		return uuid.NewString(), nil
	}
	id, ok := strings.CutPrefix(nodeID, name+"-")
	if !ok {
		return "", xerrors.Wrapf(ErrInvalidArgument, "node id %q must have the form %s-<uuid>", nodeID, name)
	}
	canon, ok := canonicalUUID(id)
	if !ok {
		return "", xerrors.Wrapf(ErrInvalidArgument, "node id %q must have the form %s-<uuid>", nodeID, name)
	}
	return canon, nil
}

func (r *registrar) Deregister(ctx context.Context, key string) error {
	if key == "" || !strings.HasPrefix(key, r.cfg.Namespace+"/") {
		return xerrors.Wrapf(ErrInvalidArgument, "key %q is outside namespace %q", key, r.cfg.Namespace)
	}
	res, err := r.store.Delete(ctx, []byte(key))
	if err != nil {
		return xerrors.Wrapf(err, "registry: delete %s", key)
	}
	if res.Deleted == 0 {
		return xerrors.Wrapf(ErrServiceNotFound, "key %q", key)
	}
	r.logger.InfoContext(ctx, "service node deregistered", clog.String("key", key))
	return nil
}
