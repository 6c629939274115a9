package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/status-agent/status-agent/internal/logging"
	"github.com/status-agent/status-agent/internal/status"
)

// 拦截响应来源，同时写进 X-Status-Agent-Source 响应头。
const (
	SourceCache    = "cache"
	SourceNetwork  = "network"
	SourceFallback = "fallback"

	HeaderSource = "X-Status-Agent-Source"
)

type outcome struct {
	body        []byte
	contentType string
	source      string
}

// Intercept 处理对被监控资源的请求。契约：永远产出 200 响应，
// 内部任何失败最终都落到兜底记录，绝不向调用方返回 HTTP 错误。
func (a *Agent) Intercept(c fiber.Ctx) error {
	started := a.now()
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := a.decide(ctx)

	fields := logging.InterceptFields(a.cfg.CacheName, a.cfg.Strategy, out.source, out.source == SourceCache)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	a.logger.WithFields(fields).Info("intercept_complete")

	c.Set(fiber.HeaderContentType, out.contentType)
	c.Set(HeaderSource, out.source)
	c.Status(fiber.StatusOK)
	return c.Send(out.body)
}

// decide 按序执行决策表：缓存新鲜度 → 单次回源 → 过期缓存 → 兜底记录。
// decide 自身兜住所有 panic，保证拦截路径对契约负责。
func (a *Agent) decide(ctx context.Context) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			fields := logging.TriggerFields("intercept", a.cfg.CacheName, a.cfg.Strategy)
			fields["error"] = fmt.Sprintf("panic: %v", r)
			a.logger.WithFields(fields).Error("intercept_panic")
			out = a.fallbackOutcome()
		}
	}()

	cached := a.readCached(ctx)

	// cache-first：未过期的可解析缓存直接返回，不触网。
	// 时间戳不可解析（包括不透明正文）则跳过短路，但条目仍是回源失败后的候选。
	if cached != nil && !a.cfg.NetworkFirst() {
		if rec, err := status.Decode(cached.body); err == nil &&
			rec.FreshAt(a.now(), a.cfg.CacheTTL.DurationValue()) {
			return outcome{body: cached.body, contentType: cached.replayContentType(), source: SourceCache}
		}
	}

	fetchedResp, err := a.fetchStatus(ctx)
	if err == nil {
		a.storeBody(ctx, fetchedResp.body, fetchedResp.contentType)
		contentType := fetchedResp.contentType
		if contentType == "" {
			contentType = fiber.MIMEApplicationJSON
		}
		return outcome{body: fetchedResp.body, contentType: contentType, source: SourceNetwork}
	}

	fields := logging.TriggerFields("intercept", a.cfg.CacheName, a.cfg.Strategy)
	fields["error"] = err.Error()
	a.logger.WithFields(fields).Warn("network_unavailable")

	// 回源失败后缓存无条件优先于兜底记录，过期与否不再考虑。
	if cached != nil {
		return outcome{body: cached.body, contentType: cached.replayContentType(), source: SourceCache}
	}

	return a.fallbackOutcome()
}

// replayContentType 沿用入库时的 Content-Type，早期条目没有元数据时按 JSON 回放。
func (c *cachedBody) replayContentType() string {
	if c.contentType != "" {
		return c.contentType
	}
	return fiber.MIMEApplicationJSON
}

func (a *Agent) fallbackOutcome() outcome {
	rec := status.Fallback(a.cfg.FallbackMessage, a.now())
	return outcome{
		body:        rec.JSON(),
		contentType: fiber.MIMEApplicationJSON,
		source:      SourceFallback,
	}
}
