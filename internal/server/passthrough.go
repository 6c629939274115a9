package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// Passthrough 将非监控路径的请求原样转发到源站：单次尝试、不写缓存、
// 不产生副作用。未配置源站时直接返回 404。
type Passthrough struct {
	client *http.Client
	logger *logrus.Logger
	origin *url.URL
}

// NewPassthrough 构造透传器；originURL 为空表示不代理其余路径。
func NewPassthrough(client *http.Client, logger *logrus.Logger, originURL string) (*Passthrough, error) {
	p := &Passthrough{
		client: client,
		logger: logger,
	}
	if originURL == "" {
		return p, nil
	}

	parsed, err := url.Parse(originURL)
	if err != nil {
		return nil, fmt.Errorf("parse origin url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("origin url must be absolute")
	}
	p.origin = parsed
	return p, nil
}

// Handle 实现 PassthroughHandler。
func (p *Passthrough) Handle(c fiber.Ctx) error {
	if p.origin == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "origin_unconfigured"})
	}

	started := time.Now()
	requestID := RequestID(c)

	req, err := p.buildOriginRequest(c)
	if err != nil {
		p.logResult(c, requestID, 0, started, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "origin_failed"})
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logResult(c, requestID, 0, started, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "origin_failed"})
	}
	defer resp.Body.Close()

	copyResponseHeaders(c, resp.Header)
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
	c.Status(resp.StatusCode)

	if c.Method() == http.MethodHead {
		p.logResult(c, requestID, resp.StatusCode, started, nil)
		return nil
	}

	_, err = io.Copy(c.Response().BodyWriter(), resp.Body)
	p.logResult(c, requestID, resp.StatusCode, started, err)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, fmt.Sprintf("origin stream failed: %v", err))
	}
	return nil
}

func (p *Passthrough) buildOriginRequest(c fiber.Ctx) (*http.Request, error) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	uri := c.Request().URI()
	relative := &url.URL{Path: string(uri.Path())}
	if query := uri.QueryString(); len(query) > 0 {
		relative.RawQuery = string(query)
	}
	target := p.origin.ResolveReference(relative)

	req, err := http.NewRequestWithContext(ctx, c.Method(), target.String(), bytesReader(c.Body()))
	if err != nil {
		return nil, err
	}

	CopyHeaders(req.Header, fiberHeadersAsHTTP(c))
	req.Host = target.Host
	req.Header.Set("Host", target.Host)
	req.Header.Set("X-Forwarded-Host", c.Hostname())
	if ip := c.IP(); ip != "" {
		if prior := req.Header.Get("X-Forwarded-For"); prior != "" {
			req.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			req.Header.Set("X-Forwarded-For", ip)
		}
	}
	req.Header.Set("X-Forwarded-Proto", c.Protocol())

	return req, nil
}

func (p *Passthrough) logResult(c fiber.Ctx, requestID string, status int, started time.Time, err error) {
	if p.logger == nil {
		return
	}
	fields := logrus.Fields{
		"action":        "passthrough",
		"path":          string(c.Request().URI().Path()),
		"origin":        p.origin.String(),
		"origin_status": status,
		"elapsed_ms":    time.Since(started).Milliseconds(),
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		p.logger.WithFields(fields).Error("passthrough_failed")
		return
	}
	p.logger.WithFields(fields).Info("passthrough_complete")
}

func bytesReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(b)
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}
