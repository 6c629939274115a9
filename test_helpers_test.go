package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfigFile 将 TOML 内容写入临时配置文件并返回路径。
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}

// validConfig 生成一份最小可用配置，存储目录落在测试临时目录。
func validConfig(t *testing.T) string {
	t.Helper()
	return writeConfigFile(t, fmt.Sprintf(`
ListenPort = 8600
StoragePath = "%s"
CacheName = "status-cache-v1"
StatusURL = "https://status.example.com/api/status.json"
OriginURL = "https://www.example.com"
`, filepath.Join(t.TempDir(), "storage")))
}
