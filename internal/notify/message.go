// Package notify carries the control/notification message protocol between
// the agent and its connected pages, plus the broadcast hub that fans
// notifications out to every subscribed page over SSE.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/status-agent/status-agent/internal/status"
)

// 消息类型。UPDATE_STATUS 为页面 → agent 的控制消息，其余为 agent → 页面的通知。
const (
	TypeUpdateStatus     = "UPDATE_STATUS"
	TypeStatusUpdated    = "STATUS_UPDATED"
	TypeUpdateComplete   = "UPDATE_COMPLETE"
	TypeBackgroundUpdate = "BACKGROUND_UPDATE"
)

// Message 是双向消息的统一载体，可选字段缺省时不参与编码。
type Message struct {
	Type      string         `json:"type"`
	Success   *bool          `json:"success,omitempty"`
	Data      *status.Record `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Complete 构造 UPDATE_COMPLETE 回执，携带成功标志与 Unix 毫秒时间戳。
func Complete(success bool, rec *status.Record, now time.Time, errText string) Message {
	return Message{
		Type:      TypeUpdateComplete,
		Success:   &success,
		Data:      rec,
		Timestamp: now.UnixMilli(),
		Error:     errText,
	}
}

// Updated 构造 STATUS_UPDATED 广播。
func Updated(rec *status.Record, now time.Time) Message {
	success := true
	return Message{
		Type:      TypeStatusUpdated,
		Success:   &success,
		Data:      rec,
		Timestamp: now.UnixMilli(),
	}
}

// Background 构造 BACKGROUND_UPDATE 广播，定时刷新成功与失败都会通知。
func Background(success bool, rec *status.Record, now time.Time, errText string) Message {
	return Message{
		Type:      TypeBackgroundUpdate,
		Success:   &success,
		Data:      rec,
		Timestamp: now.UnixMilli(),
		Error:     errText,
	}
}

// Encode 输出消息 JSON；Message 的字段类型保证编码不会失败。
func (m Message) Encode() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		return []byte(fmt.Sprintf(`{"type":%q}`, m.Type))
	}
	return data
}

// SSE 以 Server-Sent Events 帧格式输出消息。
func (m Message) SSE() []byte {
	return []byte(fmt.Sprintf("data: %s\n\n", m.Encode()))
}
