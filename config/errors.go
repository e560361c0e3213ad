package config

import (
	"fmt"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// ErrValidationFailed 验证失败
var ErrValidationFailed = fmt.Errorf("configuration validation failed: %w", xerrors.ErrInvalidInput)

// IsNotFound 检查错误是否为配置未找到
func IsNotFound(err error) bool {
	return xerrors.Is(err, xerrors.ErrNotFound)
}

// IsInvalidInput 检查错误是否为配置格式无效或验证失败
func IsInvalidInput(err error) bool {
	return xerrors.Is(err, xerrors.ErrInvalidInput)
}
