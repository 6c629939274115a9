package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// pageBuffer 是单个页面通道的缓冲深度，写满即丢弃，避免慢页面拖住 agent。
const pageBuffer = 8

// Hub 维护所有已连接页面的订阅通道，广播为非阻塞尽力投递。
type Hub struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	pages map[string]chan Message
}

// NewHub 创建空的广播 Hub。
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		logger: logger,
		pages:  make(map[string]chan Message),
	}
}

// Subscribe 注册一个页面，返回订阅 ID 与只读消息通道。
func (h *Hub) Subscribe() (string, <-chan Message) {
	id := uuid.NewString()
	ch := make(chan Message, pageBuffer)

	h.mu.Lock()
	h.pages[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe 注销页面并关闭其通道；重复注销是安全的。
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.pages[id]; ok {
		delete(h.pages, id)
		close(ch)
	}
}

// Broadcast 将消息非阻塞投递给所有页面，通道已满的页面直接丢弃本条。
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.pages {
		select {
		case ch <- msg:
		default:
			if h.logger != nil {
				h.logger.WithFields(logrus.Fields{
					"action":  "notify_drop",
					"page":    id,
					"msgType": msg.Type,
				}).Warn("页面通道已满，丢弃通知")
			}
		}
	}
}

// Count 返回当前连接的页面数，供诊断接口使用。
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.pages)
}
