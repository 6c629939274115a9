package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.StoragePath == "" {
		return newFieldError("StoragePath", "不能为空")
	}
	if err := validateCacheName(c.CacheName); err != nil {
		return fmt.Errorf("CacheName: %w", err)
	}
	if err := validateAbsoluteURL(c.StatusURL); err != nil {
		return fmt.Errorf("StatusURL: %w", err)
	}
	if c.OriginURL != "" {
		if err := validateAbsoluteURL(c.OriginURL); err != nil {
			return fmt.Errorf("OriginURL: %w", err)
		}
	}
	if c.CacheTTL.DurationValue() <= 0 {
		return newFieldError("CacheTTL", "必须大于 0")
	}
	switch c.Strategy {
	case StrategyCacheFirst, StrategyNetworkFirst:
	default:
		return newFieldError("Strategy", "仅支持 cache-first|network-first")
	}
	if c.RefreshInterval.DurationValue() < 0 {
		return newFieldError("RefreshInterval", "不能为负数")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}

	return nil
}

// validateCacheName 拒绝会逃出存储目录的代名，代名直接用作磁盘目录。
func validateCacheName(name string) error {
	if name == "" {
		return errors.New("不能为空")
	}
	if name == "." || name == ".." {
		return errors.New("非法代名")
	}
	if strings.ContainsAny(name, "/\\") {
		return errors.New("不允许包含路径分隔符")
	}
	if strings.Contains(name, " ") {
		return errors.New("不允许包含空格")
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return errors.New("不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("解析失败: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("仅支持 http/https")
	}
	if parsed.Host == "" {
		return errors.New("缺少主机名")
	}
	return nil
}
