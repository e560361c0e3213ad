package registry

import (
	"fmt"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

var (
	// ErrInvalidArgument 服务名为空或包含 '/'，或注册记录不合法
	ErrInvalidArgument = xerrors.New("invalid argument")

	// ErrTransport 读取注册中心失败
	ErrTransport = xerrors.New("registry transport failure")

	// ErrServiceNotFound 区间内没有任何注册记录
	ErrServiceNotFound = xerrors.New("service not found")

	// ErrNoAvailableNode 有注册记录但没有可用节点
	ErrNoAvailableNode = xerrors.New("no available node")
)

// DiscoveryError 服务发现失败
//
// errors.Is(err, ErrServiceNotFound) 等按 Kind 判断；Unwrap 返回底层原因。
type DiscoveryError struct {
	Kind    error
	Service string
	Cause   error
}

func newDiscoveryError(kind error, service string, cause error) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Service: service, Cause: cause}
}

func (e *DiscoveryError) Error() string {
	if e.Cause != nil && e.Cause != e.Kind {
		return fmt.Sprintf("registry: discover %q: %v: %v", e.Service, e.Kind, e.Cause)
	}
	return fmt.Sprintf("registry: discover %q: %v", e.Service, e.Kind)
}

func (e *DiscoveryError) Is(target error) bool {
	return target == e.Kind
}

func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Code 实现 xerrors.Coder
func (e *DiscoveryError) Code() string {
	return kindCode(e.Kind)
}

func kindCode(kind error) string {
	switch kind {
	case ErrInvalidArgument:
		return "INVALID_ARGUMENT"
	case ErrTransport:
		return "TRANSPORT"
	case ErrServiceNotFound:
		return "NOT_FOUND"
	case ErrNoAvailableNode:
		return "NO_AVAILABLE_NODE"
	default:
		return "UNKNOWN"
	}
}
