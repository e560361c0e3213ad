package config

import (
	"context"
	"strings"

	"github.com/ceyewan/kvdiscovery/clog"
)

// Config 加载器配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型 (yaml, json, etc.)，默认 "yaml"
	EnvPrefix string   // 环境变量前缀，默认 "KVCTL"

	logger clog.Logger
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "KVCTL"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	if c.logger == nil {
		c.logger = clog.Discard()
	}
	return nil
}

// New 创建配置加载器。
//
// 如果 cfg 为 nil，使用默认配置；opts 会在 cfg 之上覆盖对应字段。
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	for _, o := range opts {
		o(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return newLoader(cfg), nil
}

// MustLoad 创建加载器并立即 Load，出错时 panic。仅用于初始化阶段。
func MustLoad(opts ...Option) Loader {
	l, err := New(nil, opts...)
	if err != nil {
		panic(err)
	}
	if err := l.Load(context.Background()); err != nil {
		panic(err)
	}
	return l
}
