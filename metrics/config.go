package metrics

// Config 指标配置，kvctl 中位于 metrics 段
//
//	metrics:
//	  enabled: true
//	  service_name: kvctl
//	  port: 9090
//	  path: /metrics
type Config struct {
	// Enabled 为 false 时 New 返回 Discard()
	Enabled bool `mapstructure:"enabled"`

	// ServiceName 与 Version 写入 OTel Resource 的 service.name 与 service.version
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`

	// Port 大于 0 且 Path 非空时启动 /metrics 服务
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// NewDevDefaultConfig 启用指标但不监听端口，测试与本地调试使用
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}
