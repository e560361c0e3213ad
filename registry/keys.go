package registry

import (
	"strings"

	"github.com/ceyewan/kvdiscovery/xerrors"
	"github.com/google/uuid"
)

// DefaultNamespace 注册记录的默认键前缀
const DefaultNamespace = "/registry"

// 实例 ID 中 UUID 部分的上下界
var (
	MinUUID = uuid.Nil.String()
	MaxUUID = uuid.Max.String()
)

// KeyRange 左闭右开的键区间 [Start, End)
type KeyRange struct {
	Start []byte
	End   []byte
}

// BuildRange 返回默认命名空间下某个服务全部注册记录的键区间
func BuildRange(name string) (KeyRange, error) {
	return BuildRangeIn(DefaultNamespace, name)
}

// BuildRangeIn 返回 namespace 下某个服务全部注册记录的键区间
//
//	Start = {ns}/{name}/{name}-00000000-0000-0000-0000-000000000000
//	End   = {ns}/{name}/{name}-ffffffff-ffff-ffff-ffff-ffffffffffff
//
// End 不包含在区间内。
func BuildRangeIn(namespace, name string) (KeyRange, error) {
	if err := validateName(name); err != nil {
		return KeyRange{}, err
	}
	prefix := instancePrefix(namespace, name)
	return KeyRange{
		Start: []byte(prefix + MinUUID),
		End:   []byte(prefix + MaxUUID),
	}, nil
}

// BuildKey 返回单个实例的注册键 {ns}/{name}/{name}-{id}
//
// id 必须是 8-4-4-4-12 形式的 UUID，写入键时统一为小写。
// {uuid}、urn:uuid: 与无连字符的写法会落在 BuildRange 区间之外，一律拒绝。
func BuildKey(namespace, name, id string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	canon, ok := canonicalUUID(id)
	if !ok {
		return "", xerrors.Wrapf(ErrInvalidArgument, "instance id %q is not a canonical uuid", id)
	}
	return instancePrefix(namespace, name) + canon, nil
}

func canonicalUUID(id string) (string, bool) {
	if len(id) != len(MinUUID) {
		return "", false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

// NodeID 返回 go-micro 风格的节点 ID：{name}-{uuid}
func NodeID(name string) string {
	return name + "-" + uuid.NewString()
}

func instancePrefix(namespace, name string) string {
	return normalizeNamespace(namespace) + "/" + name + "/" + name + "-"
}

func validateName(name string) error {
	if name == "" {
		return xerrors.Wrap(ErrInvalidArgument, "service name is empty")
	}
	if strings.Contains(name, "/") {
		return xerrors.Wrapf(ErrInvalidArgument, "service name %q contains '/'", name)
	}
	return nil
}

// normalizeNamespace 统一为以 / 开头且不以 / 结尾；空串表示根
func normalizeNamespace(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" || ns == "/" {
		return ""
	}
	if !strings.HasPrefix(ns, "/") {
		ns = "/" + ns
	}
	return strings.TrimRight(ns, "/")
}
