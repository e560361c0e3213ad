package kv

import (
	"net/url"
	"strings"
	"time"

	"github.com/ceyewan/kvdiscovery/xerrors"
)

// HTTPConfig etcd JSON 网关客户端配置
type HTTPConfig struct {
	// Endpoint 网关地址（默认：http://127.0.0.1:2379），末尾的 / 会被去掉
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// APIVersion 网关 API 版本路径（默认：v3）
	APIVersion string `json:"api_version" yaml:"api_version" mapstructure:"api_version"`

	// Root 键前缀，所有读写都在该前缀下进行，返回的键会去掉该前缀
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Headers 每个请求附带的请求头
	Headers map[string]string `json:"headers" yaml:"headers" mapstructure:"headers"`

	// Timeout 单次请求超时（默认：5s），调用方 ctx 的截止时间更早时以 ctx 为准
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RateLimit 每秒最多发出的请求数，0 表示不限流
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst 限流桶容量（默认：与 RateLimit 取整后相同，至少 1）
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst"`
}

// DefaultHTTPConfig 返回本地网关的默认配置
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		Endpoint:   "http://127.0.0.1:2379",
		APIVersion: "v3",
		Timeout:    5 * time.Second,
	}
}

func (c *HTTPConfig) setDefaults() {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.Endpoint == "" {
		c.Endpoint = "http://127.0.0.1:2379"
	}
	c.APIVersion = strings.Trim(c.APIVersion, "/")
	if c.APIVersion == "" {
		c.APIVersion = "v3"
	}
	c.Root = normalizeRoot(c.Root)
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		c.RateBurst = max(1, int(c.RateLimit))
	}
}

func (c *HTTPConfig) validate() error {
	c.setDefaults()
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "kv: invalid endpoint %q: %v", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "kv: endpoint scheme must be http or https, got %q", c.Endpoint)
	}
	if u.Host == "" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "kv: endpoint host is empty in %q", c.Endpoint)
	}
	if c.Timeout < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "kv: timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "kv: rate_limit must not be negative")
	}
	return nil
}

// EtcdConfig clientv3 后端配置
type EtcdConfig struct {
	// Root 键前缀，语义与 HTTPConfig.Root 相同
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Timeout 单次请求超时，0 表示只依赖调用方 ctx
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// normalizeRoot 统一为以 / 开头且不以 / 结尾；空或 "/" 表示无前缀
func normalizeRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	if !strings.HasPrefix(root, "/") {
		root = "/" + root
	}
	return strings.TrimRight(root, "/")
}
