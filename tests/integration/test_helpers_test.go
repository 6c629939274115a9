package integration

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/status-agent/status-agent/internal/agent"
	"github.com/status-agent/status-agent/internal/cache"
	"github.com/status-agent/status-agent/internal/config"
	"github.com/status-agent/status-agent/internal/notify"
	"github.com/status-agent/status-agent/internal/server"
	"github.com/status-agent/status-agent/internal/server/routes"
)

// upstreamStub 同时扮演状态资源与源站，响应可在用例中调整。
type upstreamStub struct {
	mu         sync.Mutex
	statusHits int
	statusCode int
	statusBody string

	server *httptest.Server
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()
	stub := &upstreamStub{
		statusCode: http.StatusOK,
		statusBody: statusBody("normal", "运行中", time.Now()),
	}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/status.json" {
			stub.mu.Lock()
			stub.statusHits++
			code := stub.statusCode
			body := stub.statusBody
			stub.mu.Unlock()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			io.WriteString(w, body)
			return
		}
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "origin page")
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *upstreamStub) StatusURL() string {
	return s.server.URL + "/api/status.json"
}

func (s *upstreamStub) SetStatus(code int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = code
	s.statusBody = body
}

func (s *upstreamStub) StatusHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusHits
}

func jsonReader(body string) io.Reader {
	return strings.NewReader(body)
}

func statusBody(statusValue, message string, updated time.Time) string {
	return fmt.Sprintf(`{"status":%q,"message":%q,"lastUpdated":%q}`,
		statusValue, message, updated.UTC().Format(time.RFC3339))
}

// agentStack 组装一套与生产等价的完整服务，便于用 app.Test 端到端驱动。
type agentStack struct {
	App   *fiber.App
	Agent *agent.Agent
	Store cache.Store
	Hub   *notify.Hub
	Cfg   *config.Config
}

func newAgentStack(t *testing.T, stub *upstreamStub, mutate func(*config.Config)) *agentStack {
	t.Helper()

	cfg := stackConfig(t, stub.StatusURL(), stub.server.URL)
	if mutate != nil {
		mutate(cfg)
	}
	return buildStack(t, cfg)
}

// newAgentStackWithURLs 面向上游已关闭的用例，跳过 stub 直接给定地址。
func newAgentStackWithURLs(t *testing.T, statusURL, originURL string) *agentStack {
	t.Helper()
	return buildStack(t, stackConfig(t, statusURL, originURL))
}

func stackConfig(t *testing.T, statusURL, originURL string) *config.Config {
	t.Helper()
	return &config.Config{
		ListenPort:      8600,
		LogLevel:        "info",
		StoragePath:     t.TempDir(),
		CacheName:       "status-cache-v1",
		StatusURL:       statusURL,
		OriginURL:       originURL,
		CacheTTL:        config.Duration(15 * time.Minute),
		Strategy:        config.StrategyCacheFirst,
		UpstreamTimeout: config.Duration(2 * time.Second),
		FallbackMessage: "系统当前运行正常",
	}
}

func buildStack(t *testing.T, cfg *config.Config) *agentStack {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := cache.NewStore(cfg.StoragePath)
	if err != nil {
		t.Fatalf("store error: %v", err)
	}

	hub := notify.NewHub(logger)
	client := server.NewUpstreamClient(cfg)
	ag := agent.New(cfg, client, store, hub, logger)

	pass, err := server.NewPassthrough(client, logger, cfg.OriginURL)
	if err != nil {
		t.Fatalf("passthrough error: %v", err)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:      logger,
		Status:      ag,
		Passthrough: pass,
		StatusPath:  cfg.StatusPath(),
		ListenPort:  cfg.ListenPort,
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}
	routes.RegisterControlRoutes(app, ag, hub, logger)

	return &agentStack{App: app, Agent: ag, Store: store, Hub: hub, Cfg: cfg}
}

func (s *agentStack) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest("GET", "http://agent.local"+path, nil)
	resp, err := s.App.Test(req)
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
