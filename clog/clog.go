package clog

import "github.com/ceyewan/kvdiscovery/xerrors"

// New 创建 Logger；config 为 nil 时使用 NewDevDefaultConfig
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("")
	}
	c := *config
	if err := c.validate(); err != nil {
		return nil, xerrors.Wrap(err, "clog: invalid config")
	}
	return newLogger(&c, applyOptions(opts...))
}
