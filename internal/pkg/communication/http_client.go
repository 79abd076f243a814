/**
 * HTTP通信客户端
 * @author: sun977
 * @date: 2025.10.21
 * @description: Agent端与Master端的HTTP通信客户端 (单向传输：所有连接都由 Agent 发起)
 * @func: 拉取命令信封、回传结果信封、上报采集值；失败按配置重试，支持 SOCKS5 代理
 */
package communication

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"

	"neofleet/internal/config"
	"neofleet/internal/core/command"
	"neofleet/internal/model/base"
	"neofleet/internal/pkg/version"
)

var (
	ErrUnauthorized = errors.New("master rejected agent token")
	ErrEmptyToken   = errors.New("agent token is empty")
)

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("master returned status %d: %s", e.StatusCode, e.Message)
}

// MeasurementReport 单个采集值；Record 为编码后的调度指标描述
type MeasurementReport struct {
	Record    string  `json:"record"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"` // 毫秒
	Error     string  `json:"error,omitempty"`
}

// Options 客户端参数
type Options struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RetryCount    int
	RetryDelay    time.Duration
	SkipTLSVerify bool
	Proxy         string // socks5://[user:pass@]host:port
}

// Client Master 通信客户端，并发安全
type Client struct {
	client     *http.Client
	baseURL    string
	token      string
	maxRetries int
	retryDelay time.Duration
	userAgent  string
}

// NewClient 创建客户端
func NewClient(opts Options) (*Client, error) {
	if opts.Token == "" {
		return nil, ErrEmptyToken
	}
	if err := command.ValidateToken(opts.Token); err != nil {
		return nil, err
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid master url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- 仅在配置显式开启时
	}
	if opts.Proxy != "" {
		dial, err := socksDialer(opts.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = dial
	}

	retries := opts.RetryCount
	if retries < 0 {
		retries = 0
	}
	return &Client{
		client:     &http.Client{Timeout: timeout, Transport: transport},
		baseURL:    opts.BaseURL,
		token:      opts.Token,
		maxRetries: retries,
		retryDelay: opts.RetryDelay,
		userAgent:  version.GetUserAgent(),
	}, nil
}

// NewClientFromConfig 按配置创建客户端
func NewClientFromConfig(cfg *config.MasterConfig, agentToken string) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("master config is nil")
	}
	return NewClient(Options{
		BaseURL:       cfg.BaseURL(),
		Token:         agentToken,
		Timeout:       cfg.RequestTimeout,
		RetryCount:    cfg.RetryCount,
		RetryDelay:    cfg.RetryDelay,
		SkipTLSVerify: cfg.SkipTLSVerify,
		Proxy:         cfg.Proxy,
	})
}

// socksDialer 只支持 socks5，HTTP 代理走 http.Transport 自带的 Proxy
func socksDialer(proxyAddr string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	u, err := url.Parse(proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("unsupported proxy scheme: %s (only socks5 is supported)", u.Scheme)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- dialResult{conn, err}
		}()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.conn, res.err
		}
	}, nil
}

// Token 当前使用的 Agent 令牌
func (c *Client) Token() string {
	return c.token
}

// BaseURL Master 地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) mailqueuePath(suffix string) string {
	return "/mailqueue/" + url.PathEscape(c.token) + "/" + suffix
}

// ==================== 邮件队列 ====================

// FetchCommands 拉取等待执行的命令信封
func (c *Client) FetchCommands(ctx context.Context) ([]*command.Request, error) {
	var reqs []*command.Request
	if err := c.call(ctx, http.MethodGet, c.mailqueuePath("commands"), nil, &reqs); err != nil {
		return nil, fmt.Errorf("fetch commands: %w", err)
	}
	return reqs, nil
}

// PushResults 回传结果信封
func (c *Client) PushResults(ctx context.Context, results []*command.Response) (*base.BatchResult, error) {
	if len(results) == 0 {
		return &base.BatchResult{}, nil
	}
	var out base.BatchResult
	if err := c.call(ctx, http.MethodPost, c.mailqueuePath("results"), results, &out); err != nil {
		return nil, fmt.Errorf("push results: %w", err)
	}
	return &out, nil
}

// PushMeasurements 上报采集值
func (c *Client) PushMeasurements(ctx context.Context, reports []MeasurementReport) (*base.BatchResult, error) {
	if len(reports) == 0 {
		return &base.BatchResult{}, nil
	}
	var out base.BatchResult
	if err := c.call(ctx, http.MethodPost, c.mailqueuePath("measurements"), reports, &out); err != nil {
		return nil, fmt.Errorf("push measurements: %w", err)
	}
	return &out, nil
}

// ==================== 基础HTTP方法 ====================

// call 发送请求并把 APIResponse.Data 解码到 out
func (c *Client) call(ctx context.Context, method, path string, data, out interface{}) error {
	var payload []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal request data: %w", err)
		}
		payload = b
	}

	resp, err := c.doRequest(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var envelope base.RawAPIResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		msg := envelope.Error
		if msg == "" {
			msg = envelope.Message
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// doRequest 执行HTTP请求 (网络错误和 5xx 重试)
func (c *Client) doRequest(ctx context.Context, method, fullURL string, payload []byte) (*http.Response, error) {
	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 && c.retryDelay > 0 {
			timer := time.NewTimer(c.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError && i < c.maxRetries {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("request %s %s failed after %d attempts: %w", method, fullURL, c.maxRetries+1, lastErr)
}
