// Package fetcher 负责抓取订阅源原始字节，带重试与指数退避。
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iabetor/feedhub/internal/feederr"
	"github.com/iabetor/feedhub/internal/logger"
)

const (
	// maxAttempts 包含首次请求在内的总尝试次数。
	maxAttempts = 3
	// baseBackoff 首次重试前的等待时间，之后每次翻倍（1s、2s、4s）。
	baseBackoff = time.Second
	// maxBodySize 响应体大小上限，防止异常源拖垮内存。
	maxBodySize = 10 << 20 // 10 MB
)

// Client 重试型 HTTP 抓取客户端。TLS 证书校验始终开启。
type Client struct {
	hc        *http.Client
	userAgent string
	backoff   time.Duration // 测试中可缩短
}

// New 创建抓取客户端。timeout 为单次请求的超时。
func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:        &http.Client{Timeout: timeout},
		userAgent: userAgent,
		backoff:   baseBackoff,
	}
}

// Fetch 抓取 url 并返回响应体与状态码。
// 连接错误、超时和 5xx 会重试（最多 3 次尝试，退避 1s/2s/4s）；
// 4xx 不重试，立即返回 feederr.FetchError。
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, int, error) {
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff << (attempt - 2)
			logger.Warnf("[fetcher] 第 %d 次重试 %s，等待 %v: %v", attempt, url, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, lastStatus, &feederr.FetchError{URL: url, StatusCode: lastStatus, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		body, status, err := c.doOnce(ctx, url)
		if err == nil {
			return body, status, nil
		}
		lastErr = err
		lastStatus = status

		// 4xx 是终态，不值得重试
		if status >= 400 && status < 500 {
			logger.Errorf("[fetcher] 抓取 %s 失败 (HTTP %d)，不重试", url, status)
			return nil, status, &feederr.FetchError{URL: url, StatusCode: status, Attempts: attempt, Err: err}
		}
	}

	logger.Errorf("[fetcher] 抓取 %s 重试耗尽: %v", url, lastErr)
	return nil, lastStatus, &feederr.FetchError{URL: url, StatusCode: lastStatus, Attempts: maxAttempts, Err: lastErr}
}

// doOnce 执行单次 GET。非 2xx 状态码视为错误返回。
func (c *Client) doOnce(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉响应体以复用连接
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
