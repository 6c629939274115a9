package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责管理磁盘缓存的读写。磁盘布局遵循：
//
//	<StoragePath>/<Generation>/<path>    # 实际正文
//
// 每个缓存代是一个独立目录，整代删除即完成失效。条目的 ModTime/Size
// 由文件系统提供。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, locator Locator) (*ReadResult, error)

	// Put 将响应正文写入缓存，并产出新的 Entry 描述。实现需通过临时文件 + rename
	// 保证写入原子性，并在失败时清理临时文件。可选地根据 opts.ModTime 设置文件时间戳。
	Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除条目及其随附元数据，用于清除已证明不可读的缓存。
	Remove(ctx context.Context, locator Locator) error

	// Generations 枚举当前存在的所有缓存代名字。
	Generations(ctx context.Context) ([]string, error)

	// DropGeneration 整体删除一个缓存代目录，代不存在时不视为错误。
	DropGeneration(ctx context.Context, name string) error
}

// PutOptions 控制写入过程中的可选属性。ContentType 随条目一起持久化，
// 回放时沿用入库时的类型。
type PutOptions struct {
	ModTime     time.Time
	ContentType string
}

// Locator 唯一定位一个缓存条目（缓存代 + 相对路径），所有路径均为 URL 路径风格。
type Locator struct {
	Generation string
	Path       string
}

// Entry 表示一次缓存命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Locator     Locator `json:"locator"`
	FilePath    string  `json:"file_path"`
	SizeBytes   int64   `json:"size_bytes"`
	ContentType string  `json:"content_type,omitempty"`
	ModTime     time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于 agent 层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")
