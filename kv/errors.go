package kv

import (
	"fmt"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// 哨兵错误
var (
	// ErrKeyNotFound 键不存在
	ErrKeyNotFound = xerrors.New("kv: key not found")

	// ErrTransport 请求未能完成：网络错误、超时、熔断打开
	ErrTransport = xerrors.New("kv: transport failure")

	// ErrMalformedResponse 响应体无法解码
	ErrMalformedResponse = xerrors.New("kv: malformed response")

	// ErrStore 服务端返回了错误，具体信息见 *StoreError
	ErrStore = xerrors.New("kv: store error")

	// ErrInvalidKey 键为空
	ErrInvalidKey = xerrors.New("kv: invalid key")
)

// StoreError 服务端返回的错误
//
// HTTP 后端填充 HTTPStatus；两个后端都尽量填充 gRPC 状态码 GRPCCode。
type StoreError struct {
	Op         string
	HTTPStatus int
	GRPCCode   int
	Message    string
}

func (e *StoreError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("kv %s: store error (http %d, code %d): %s", e.Op, e.HTTPStatus, e.GRPCCode, e.Message)
	}
	return fmt.Sprintf("kv %s: store error (code %d): %s", e.Op, e.GRPCCode, e.Message)
}

// Is 使 errors.Is(err, ErrStore) 成立
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

// Code 实现 xerrors.Coder
func (e *StoreError) Code() string {
	return "STORE_ERROR"
}

func transportError(op string, err error) error {
	return fmt.Errorf("kv %s: %w: %w", op, ErrTransport, err)
}

// errUndecodable 网关返回了记录，但全部在解码时被跳过
var errUndecodable = xerrors.New("entry could not be decoded")

func malformedError(op string, err error) error {
	return fmt.Errorf("kv %s: %w: %w", op, ErrMalformedResponse, err)
}
