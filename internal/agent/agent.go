package agent

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/cache"
	"github.com/status-agent/status-agent/internal/config"
	"github.com/status-agent/status-agent/internal/logging"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/status"
)

// Agent 拥有一个缓存代与一个远端状态资源，五个触发器（初始化、请求拦截、
// 显式刷新、激活、定时刷新）都在它上面实现。决策不依赖内部状态机，
// 每次触发都基于缓存内容与墙钟重新计算。
type Agent struct {
	cfg    *config.Config
	client *http.Client
	store  cache.Store
	hub    *notify.Hub
	logger *logrus.Logger

	locator cache.Locator
	now     func() time.Time
}

// New 构造 Agent；缓存键取被监控 URL 去参数后的路径，保证重复抓取覆盖同一条目。
func New(cfg *config.Config, client *http.Client, store cache.Store, hub *notify.Hub, logger *logrus.Logger) *Agent {
	return &Agent{
		cfg:    cfg,
		client: client,
		store:  store,
		hub:    hub,
		logger: logger,
		locator: cache.Locator{
			Generation: cfg.CacheName,
			Path:       cfg.StatusPath(),
		},
		now: time.Now,
	}
}

// Generation 返回当前缓存代名。
func (a *Agent) Generation() string {
	return a.cfg.CacheName
}

// StatusPath 返回被监控资源的请求路径。
func (a *Agent) StatusPath() string {
	return a.cfg.StatusPath()
}

// Strategy 返回当前生效的缓存策略名。
func (a *Agent) Strategy() string {
	return a.cfg.Strategy
}

// Pages 返回当前连接的页面数。
func (a *Agent) Pages() int {
	return a.hub.Count()
}

// CacheEntry 返回缓存条目的元信息，供诊断接口展示。
func (a *Agent) CacheEntry(ctx context.Context) (cache.Entry, bool) {
	result, err := a.store.Get(ctx, a.locator)
	if err != nil {
		return cache.Entry{}, false
	}
	result.Reader.Close()
	return result.Entry, true
}

// Initialize 打开当前缓存代并预热：一次绕过缓存的抓取，成功原样入库，
// 失败写入兜底记录。任何错误都不会向调用方暴露。
func (a *Agent) Initialize(ctx context.Context) {
	fields := logging.TriggerFields("initialize", a.cfg.CacheName, a.cfg.Strategy)

	fetched, err := a.fetchStatus(ctx)
	if err != nil {
		rec := status.Fallback(a.cfg.FallbackMessage, a.now())
		a.storeBody(ctx, rec.JSON(), "application/json")
		fields["error"] = err.Error()
		a.logger.WithFields(fields).Warn("initialize_fallback")
		return
	}

	a.storeBody(ctx, fetched.body, fetched.contentType)
	fields["size"] = len(fetched.body)
	a.logger.WithFields(fields).Info("initialize_complete")
}

// cachedBody 是缓存条目读出的正文及其入库时的 Content-Type。
type cachedBody struct {
	body        []byte
	contentType string
}

// readCached 返回缓存条目；不存在或读取失败都按"无缓存"处理，失败仅记日志。
// 读到一半失败的条目视为不可读，顺手从存储里清掉，避免下次请求重蹈覆辙。
func (a *Agent) readCached(ctx context.Context) *cachedBody {
	result, err := a.store.Get(ctx, a.locator)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			a.logger.WithError(err).
				WithFields(logging.TriggerFields("intercept", a.cfg.CacheName, a.cfg.Strategy)).
				Warn("cache_get_failed")
		}
		return nil
	}
	defer result.Reader.Close()

	body := make([]byte, 0, result.Entry.SizeBytes)
	buf := bytes.NewBuffer(body)
	if _, err := buf.ReadFrom(result.Reader); err != nil {
		a.logger.WithError(err).
			WithFields(logging.TriggerFields("intercept", a.cfg.CacheName, a.cfg.Strategy)).
			Warn("cache_read_failed")
		if removeErr := a.store.Remove(ctx, a.locator); removeErr != nil {
			a.logger.WithError(removeErr).
				WithFields(logging.TriggerFields("intercept", a.cfg.CacheName, a.cfg.Strategy)).
				Warn("cache_evict_failed")
		}
		return nil
	}
	return &cachedBody{body: buf.Bytes(), contentType: result.Entry.ContentType}
}

// storeBody 将正文连同 Content-Type 写穿缓存；写入失败只记日志，不影响请求路径。
func (a *Agent) storeBody(ctx context.Context, body []byte, contentType string) {
	opts := cache.PutOptions{ModTime: a.now(), ContentType: contentType}
	if _, err := a.store.Put(ctx, a.locator, bytes.NewReader(body), opts); err != nil {
		fields := logging.TriggerFields("store", a.cfg.CacheName, a.cfg.Strategy)
		a.logger.WithError(err).WithFields(fields).Warn("cache_write_failed")
	}
}
