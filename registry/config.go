package registry

import (
	"time"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// Config Registry 组件配置
type Config struct {
	// Namespace 注册记录的键前缀，默认 "/registry"
	// go-micro 默认部署使用 "/micro/registry"
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`

	// Timeout 单次服务发现的超时，0 表示只依赖调用方 ctx
	Timeout time.Duration `yaml:"timeout" json:"timeout" mapstructure:"timeout"`

	// Schema 注册到 gRPC resolver 的 schema，默认 "micro"
	Schema string `yaml:"schema" json:"schema" mapstructure:"schema"`
}

func (c *Config) validate() error {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	c.Namespace = normalizeNamespace(c.Namespace)
	if c.Schema == "" {
		c.Schema = "micro"
	}
	if c.Timeout < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "registry: timeout must not be negative")
	}
	return nil
}
