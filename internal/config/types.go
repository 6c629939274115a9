package config

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"15m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// 缓存策略取值。cache-first 在缓存未过期时完全跳过网络；
// network-first 总是先回源，仅在失败时退回缓存。
const (
	StrategyCacheFirst   = "cache-first"
	StrategyNetworkFirst = "network-first"
)

// Config 是 TOML 文件映射的整体结构，agent 只监控一个远端状态资源。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	StoragePath string `mapstructure:"StoragePath"`

	// CacheName 是当前缓存代的名字；改名即作废所有旧代缓存。
	CacheName string `mapstructure:"CacheName"`

	// StatusURL 是被监控的远端状态资源，OriginURL 是其余请求透传的源站。
	StatusURL string `mapstructure:"StatusURL"`
	OriginURL string `mapstructure:"OriginURL"`

	CacheTTL        Duration `mapstructure:"CacheTTL"`
	Strategy        string   `mapstructure:"Strategy"`
	RefreshInterval Duration `mapstructure:"RefreshInterval"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`

	// FallbackMessage 是兜底状态记录携带的本地化文案。
	FallbackMessage string `mapstructure:"FallbackMessage"`
}

// NetworkFirst 表示当前策略是否为 network-first。
func (c Config) NetworkFirst() bool {
	return c.Strategy == StrategyNetworkFirst
}

// StatusPath 返回被监控资源去参数后的请求路径，用于路由匹配与缓存键。
func (c Config) StatusPath() string {
	parsed, err := url.Parse(c.StatusURL)
	if err != nil || parsed.Path == "" {
		return "/"
	}
	return path.Clean("/" + parsed.Path)
}

// PeriodicEnabled 表示是否开启后台定时刷新。
func (c Config) PeriodicEnabled() bool {
	return c.RefreshInterval.DurationValue() > 0
}
