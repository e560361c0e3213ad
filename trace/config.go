package trace

import "github.com/ceyewan/kvdiscovery/xerrors"

// Batcher 取值
const (
	BatcherBatch  = "batch"
	BatcherSimple = "simple" // 同步导出，便于本地调试
)

// Config 链路追踪配置，kvctl 中位于 trace 段
type Config struct {
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"` // OTLP gRPC 地址
	Sampler     float64 `mapstructure:"sampler" yaml:"sampler"`   // 采样率 [0, 1]
	Batcher     string  `mapstructure:"batcher" yaml:"batcher"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

// DefaultConfig 导出到本机 collector，全量采样
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     BatcherBatch,
		Insecure:    true,
	}
}

func (c *Config) validate() error {
	switch {
	case c == nil:
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: config is required")
	case c.ServiceName == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: service_name is required")
	case c.Endpoint == "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "trace: endpoint is required")
	case c.Sampler < 0 || c.Sampler > 1:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: sampler must be between 0 and 1, got %v", c.Sampler)
	case c.Batcher != "" && c.Batcher != BatcherBatch && c.Batcher != BatcherSimple:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "trace: batcher must be %q or %q, got %q", BatcherBatch, BatcherSimple, c.Batcher)
	}
	return nil
}
