// Package routes exposes the agent control surface: the page → agent message
// endpoint, the SSE notification stream, and the diagnostics view.
package routes

import (
	"bufio"
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/cache"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/version"
)

// Agent 是控制面需要的最小 agent 能力集，便于测试注入。
type Agent interface {
	ExplicitRefresh(context.Context) notify.Message
	Generation() string
	StatusPath() string
	Strategy() string
	Pages() int
	CacheEntry(context.Context) (cache.Entry, bool)
}

// RegisterControlRoutes 注册 /agent/message、/agent/events 与 /-/agent。
// 必须在服务的 catch-all 之后注册（catch-all 对控制路径调用 c.Next()）。
func RegisterControlRoutes(app *fiber.App, agent Agent, hub *notify.Hub, logger *logrus.Logger) {
	if app == nil || agent == nil || hub == nil {
		return
	}

	app.Post("/agent/message", func(c fiber.Ctx) error {
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(c.Body(), &msg); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_message"})
		}

		switch msg.Type {
		case notify.TypeUpdateStatus:
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			reply := agent.ExplicitRefresh(ctx)
			return c.JSON(reply)
		default:
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"action":  "control_message",
					"msgType": msg.Type,
				}).Warn("未知控制消息类型")
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_message_type"})
		}
	})

	app.Get("/agent/events", func(c fiber.Ctx) error {
		id, ch := hub.Subscribe()

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set("Connection", "keep-alive")

		c.Response().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer hub.Unsubscribe(id)
			for msg := range ch {
				if _, err := w.Write(msg.SSE()); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
		return nil
	})

	app.Get("/-/agent", func(c fiber.Ctx) error {
		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		payload := fiber.Map{
			"generation":  agent.Generation(),
			"status_path": agent.StatusPath(),
			"strategy":    agent.Strategy(),
			"pages":       agent.Pages(),
			"version":     version.Full(),
		}
		if entry, ok := agent.CacheEntry(ctx); ok {
			payload["cache"] = fiber.Map{
				"present":    true,
				"size_bytes": entry.SizeBytes,
				"mod_time":   entry.ModTime,
			}
		} else {
			payload["cache"] = fiber.Map{"present": false}
		}
		return c.JSON(payload)
	})
}
