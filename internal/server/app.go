package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusHandler 描述被监控资源的拦截器，便于测试注入假实现。
type StatusHandler interface {
	Intercept(fiber.Ctx) error
}

// PassthroughHandler 描述其余请求的透传器。
type PassthroughHandler interface {
	Handle(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger      *logrus.Logger
	Status      StatusHandler
	Passthrough PassthroughHandler
	StatusPath  string
	ListenPort  int
}

const contextKeyRequestID = "_statusagent_request_id"

// NewApp builds a Fiber application with request-ID middleware and the
// intercept/passthrough catch-all. Control routes (/agent/*, /-/*) are
// registered separately and matched ahead of the catch-all via c.Next().
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Status == nil {
		return nil, errors.New("status handler is required")
	}
	if opts.Passthrough == nil {
		return nil, errors.New("passthrough handler is required")
	}
	if opts.StatusPath == "" || !strings.HasPrefix(opts.StatusPath, "/") {
		return nil, fmt.Errorf("invalid status path: %q", opts.StatusPath)
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.All("/*", func(c fiber.Ctx) error {
		path := string(c.Request().URI().Path())
		if isControlPath(path) {
			return c.Next()
		}
		if path == opts.StatusPath && c.Method() == fiber.MethodGet {
			return opts.Status.Intercept(c)
		}
		return opts.Passthrough.Handle(c)
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID 并回写 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// isControlPath 标记 agent 控制面与诊断接口的路径前缀。
func isControlPath(path string) bool {
	return strings.HasPrefix(path, "/agent/") || strings.HasPrefix(path, "/-/")
}
