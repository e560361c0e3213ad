package clog

import (
	"strings"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config 日志配置，kvctl 中位于 log 段
//
//	log:
//	  level: info
//	  format: json
//	  output: /var/log/kvctl.log
//	  add_source: true
type Config struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`    // debug|info|warn|error
	Format     string `json:"format" yaml:"format" mapstructure:"format"` // json|console
	Output     string `json:"output" yaml:"output" mapstructure:"output"` // stdout|stderr|<file path>
	AddSource  bool   `json:"addSource" yaml:"addSource" mapstructure:"add_source"`
	SourceRoot string `json:"sourceRoot" yaml:"sourceRoot" mapstructure:"source_root"` // 裁剪 caller 路径
}

// NewDevDefaultConfig debug 级别、console 格式、输出到 stderr
func NewDevDefaultConfig(sourceRoot string) *Config {
	return &Config{
		Level:      "debug",
		Format:     "console",
		Output:     "stderr",
		AddSource:  true,
		SourceRoot: sourceRoot,
	}
}

// validate 填充默认值并校验
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	if f := strings.ToLower(c.Format); f != "json" && f != "console" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "clog: format %q must be json or console", c.Format)
	}
	return nil
}
