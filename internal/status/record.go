// Package status defines the JSON payload shape of the monitored resource and
// the freshness/fallback rules derived from its lastUpdated timestamp. The
// agent relies on this package to decide whether a cached body can short-cut
// the network and to synthesize a default record when nothing else is
// available.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL 是缓存记录的最大可信年龄。
const DefaultTTL = 15 * time.Minute

// StatusNormal 是兜底记录固定携带的状态值。
const StatusNormal = "normal"

// Record 对应远端状态资源的 JSON 负载。LastUpdated 为 ISO-8601 字符串，
// 保持原样存储，新鲜度判断时再解析。
type Record struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	LastUpdated string `json:"lastUpdated"`
}

// ErrNoTimestamp 表示负载缺少 lastUpdated 字段。
var ErrNoTimestamp = errors.New("status record missing lastUpdated")

// Decode 解析状态记录并要求 lastUpdated 可解析；解析失败的正文按不可读处理，
// 调用方据此跳过新鲜度判断，但仍可原样缓存与回放。
func Decode(body []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("decode status record: %w", err)
	}
	if rec.LastUpdated == "" {
		return Record{}, ErrNoTimestamp
	}
	if _, err := rec.UpdatedAt(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdatedAt 返回 lastUpdated 对应的时间点。
func (r Record) UpdatedAt() (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, r.LastUpdated)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastUpdated: %w", err)
	}
	return parsed, nil
}

// FreshAt 以 now 为基准判断记录是否仍在 TTL 内；时间戳不可解析视为不新鲜。
func (r Record) FreshAt(now time.Time, ttl time.Duration) bool {
	updated, err := r.UpdatedAt()
	if err != nil {
		return false
	}
	return now.Sub(updated) < ttl
}

// Fallback 构造兜底记录，时间戳取构造时刻。
func Fallback(message string, now time.Time) Record {
	return Record{
		Status:      StatusNormal,
		Message:     message,
		LastUpdated: now.UTC().Format(time.RFC3339),
	}
}

// JSON 输出记录的 JSON 字节；Record 的字段类型保证编码不会失败。
func (r Record) JSON() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"status":"normal","message":"","lastUpdated":""}`)
	}
	return data
}
