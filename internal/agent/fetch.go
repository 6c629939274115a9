package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// maxStatusBody 限制单次抓取的正文大小，状态资源应远小于此。
const maxStatusBody = 4 << 20

type fetched struct {
	body        []byte
	contentType string
}

// fetchStatus 对状态 URL 做单次回源：附加防缓存参数与 no-store 头。
// 成功 = 拿到 2xx 响应；正文是否可解析不影响成功判定（不透明正文照常接受）。
func (a *Agent) fetchStatus(ctx context.Context) (*fetched, error) {
	target, err := a.bustedURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return nil, fmt.Errorf("read status body: %w", err)
	}

	return &fetched{
		body:        body,
		contentType: resp.Header.Get("Content-Type"),
	}, nil
}

// bustedURL 在状态 URL 上附加一次性 t 参数，绕过链路上的任何中间缓存。
// 缓存键始终用去参数的路径，重复抓取覆盖同一条目。
func (a *Agent) bustedURL() (string, error) {
	parsed, err := url.Parse(a.cfg.StatusURL)
	if err != nil {
		return "", fmt.Errorf("parse status url: %w", err)
	}
	query := parsed.Query()
	query.Set("t", uuid.NewString())
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
