package notify

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/status"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(logger)
}

func TestBroadcastReachesAllPages(t *testing.T) {
	hub := newTestHub()
	_, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()

	rec := status.Fallback("ok", time.Now())
	hub.Broadcast(Updated(&rec, time.Now()))

	for i, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			if msg.Type != TypeStatusUpdated {
				t.Fatalf("页面 %d 收到错误类型: %s", i, msg.Type)
			}
			if msg.Data == nil || msg.Data.Status != "normal" {
				t.Fatalf("页面 %d 缺少 data 字段", i)
			}
		default:
			t.Fatalf("页面 %d 未收到广播", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := newTestHub()
	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)

	if _, ok := <-ch; ok {
		t.Fatalf("注销后通道应关闭")
	}
	if hub.Count() != 0 {
		t.Fatalf("注销后页面数应为 0，得到 %d", hub.Count())
	}

	// 重复注销不应 panic
	hub.Unsubscribe(id)
	hub.Broadcast(Updated(nil, time.Now()))
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	_, ch := hub.Subscribe()

	for i := 0; i < pageBuffer+4; i++ {
		hub.Broadcast(Background(true, nil, time.Now(), ""))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	if received != pageBuffer {
		t.Fatalf("慢页面应只保留缓冲内的 %d 条，收到 %d", pageBuffer, received)
	}
}

func TestCompleteMessageEncoding(t *testing.T) {
	msg := Complete(false, nil, time.UnixMilli(1700000000000), "connection refused")
	var decoded map[string]any
	if err := json.Unmarshal(msg.Encode(), &decoded); err != nil {
		t.Fatalf("编码结果应为合法 JSON: %v", err)
	}
	if decoded["type"] != TypeUpdateComplete {
		t.Fatalf("type 不匹配: %v", decoded["type"])
	}
	if decoded["success"] != false {
		t.Fatalf("失败回执 success 应为 false")
	}
	if decoded["error"] != "connection refused" {
		t.Fatalf("error 字段不匹配: %v", decoded["error"])
	}
	if _, ok := decoded["data"]; ok {
		t.Fatalf("失败回执不应携带 data")
	}
}

func TestSSEFrameFormat(t *testing.T) {
	frame := string(Updated(nil, time.Now()).SSE())
	if !strings.HasPrefix(frame, "data: {") || !strings.HasSuffix(frame, "\n\n") {
		t.Fatalf("SSE 帧格式不正确: %q", frame)
	}
}
