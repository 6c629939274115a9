package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/cache"
	"github.com/status-agent/status-agent/internal/config"
	"github.com/status-agent/status-agent/internal/notify"
)

// statusStub 模拟远端状态资源，响应内容、状态码与 Content-Type 可在用例中随时调整。
type statusStub struct {
	mu          sync.Mutex
	hits        int
	status      int
	body        string
	contentType string
	lastQuery   string

	server *httptest.Server
}

func newStatusStub(t *testing.T) *statusStub {
	t.Helper()
	stub := &statusStub{
		status:      http.StatusOK,
		body:        fmt.Sprintf(`{"status":"normal","message":"ok","lastUpdated":%q}`, time.Now().UTC().Format(time.RFC3339)),
		contentType: "application/json",
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.hits++
		stub.lastQuery = r.URL.RawQuery
		status := stub.status
		body := stub.body
		contentType := stub.contentType
		stub.mu.Unlock()

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *statusStub) URL() string {
	return s.server.URL + "/api/status.json"
}

func (s *statusStub) SetResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *statusStub) SetContentType(contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentType = contentType
}

func (s *statusStub) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func (s *statusStub) LastQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

func testConfig(t *testing.T, statusURL string) *config.Config {
	t.Helper()
	return &config.Config{
		ListenPort:      8600,
		LogLevel:        "info",
		StoragePath:     t.TempDir(),
		CacheName:       "status-cache-v1",
		StatusURL:       statusURL,
		CacheTTL:        config.Duration(15 * time.Minute),
		Strategy:        config.StrategyCacheFirst,
		UpstreamTimeout: config.Duration(2 * time.Second),
		FallbackMessage: "系统当前运行正常",
	}
}

// newTestAgent 按配置组装一个可测的 Agent 及其依赖。
func newTestAgent(t *testing.T, cfg *config.Config) (*Agent, cache.Store, *notify.Hub) {
	t.Helper()

	store, err := cache.NewStore(cfg.StoragePath)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	a, hub := newTestAgentWithStore(t, cfg, store)
	return a, store, hub
}

// newTestAgentWithStore 用外部提供的存储组装 Agent，便于注入故障存储。
func newTestAgentWithStore(t *testing.T, cfg *config.Config, store cache.Store) (*Agent, *notify.Hub) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	hub := notify.NewHub(logger)
	client := &http.Client{Timeout: 2 * time.Second}

	return New(cfg, client, store, hub, logger), hub
}

// faultStore 包装真实存储并按需注入故障：写失败、读中断，同时记录清除次数。
type faultStore struct {
	cache.Store

	putErr  error
	readErr bool
	removed int
}

func (f *faultStore) Put(ctx context.Context, locator cache.Locator, body io.Reader, opts cache.PutOptions) (*cache.Entry, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	return f.Store.Put(ctx, locator, body, opts)
}

func (f *faultStore) Get(ctx context.Context, locator cache.Locator) (*cache.ReadResult, error) {
	result, err := f.Store.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	if f.readErr {
		result.Reader = brokenReader{result.Reader}
	}
	return result, nil
}

func (f *faultStore) Remove(ctx context.Context, locator cache.Locator) error {
	f.removed++
	return f.Store.Remove(ctx, locator)
}

// brokenReader 在首次读取时报错，模拟读到一半损坏的条目。
type brokenReader struct {
	io.ReadSeekCloser
}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("read interrupted")
}

// newInterceptApp 将 Agent 挂到最小 Fiber 应用上，复用 app.Test 驱动拦截路径。
func newInterceptApp(t *testing.T, a *Agent) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get(a.StatusPath(), a.Intercept)
	return app
}

func interceptOnce(t *testing.T, app *fiber.App, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", "http://agent.local"+path, nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body error: %v", err)
	}
	return resp, body
}

// seedCache 直接向存储写入正文，模拟已有的缓存条目。
func seedCache(t *testing.T, store cache.Store, cfg *config.Config, body string) {
	t.Helper()
	locator := cache.Locator{Generation: cfg.CacheName, Path: cfg.StatusPath()}
	if _, err := store.Put(context.Background(), locator, bytes.NewReader([]byte(body)), cache.PutOptions{}); err != nil {
		t.Fatalf("seed cache error: %v", err)
	}
}

func recordBody(statusValue, message string, updated time.Time) string {
	return fmt.Sprintf(`{"status":%q,"message":%q,"lastUpdated":%q}`,
		statusValue, message, updated.UTC().Format(time.RFC3339))
}

func readCacheEntry(t *testing.T, store cache.Store, cfg *config.Config) string {
	t.Helper()
	locator := cache.Locator{Generation: cfg.CacheName, Path: cfg.StatusPath()}
	result, err := store.Get(context.Background(), locator)
	if err != nil {
		t.Fatalf("read cache error: %v", err)
	}
	defer result.Reader.Close()
	data, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read cache body error: %v", err)
	}
	return string(data)
}
