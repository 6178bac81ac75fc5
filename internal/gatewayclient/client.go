// Package gatewayclient 提供访问博客生成网关 HTTP API 的 Go 客户端封装。
// 函数响应（200/500，响应体为 JSON 字符串）以 GenerateResult 返回，
// 网关自身的错误（请求体过大、处理函数异常等）以 *APIError 返回。
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/scheduler"
)

// DefaultAPIKeyHeader 是网关默认读取 API Key 的请求头。
const DefaultAPIKeyHeader = "X-API-Key"

// DefaultTimeout 是默认请求超时，需覆盖 300 秒的推理读取超时。
const DefaultTimeout = 6 * time.Minute

// Client 是博客生成网关 HTTP API 客户端。
type Client struct {
	baseURL    string
	routePath  string
	apiKey     string
	keyHeader  string
	token      string
	httpClient *http.Client
}

// Option 客户端选项。
type Option func(*Client)

// WithRoutePath 设置生成接口路径。
func WithRoutePath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.routePath = path
		}
	}
}

// WithAPIKey 设置 API Key，默认通过 X-API-Key 请求头发送。
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithAPIKeyHeader 设置发送 API Key 的请求头，需与网关 auth.api_key_header 一致。
func WithAPIKeyHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.keyHeader = name
		}
	}
}

// WithToken 设置 Bearer 令牌。
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout 设置请求超时。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New 创建一个新的客户端。
// baseURL 为空时默认使用 http://localhost:8080。
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		routePath: "/blog-generation",
		keyHeader: DefaultAPIKeyHeader,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateResult 表示一次生成请求的结果。
type GenerateResult struct {
	StatusCode int    `json:"status_code" yaml:"status_code"`
	Message    string `json:"message" yaml:"message"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

// OK 报告文章是否已生成（并按存储策略完成写入）。
func (r *GenerateResult) OK() bool {
	return r.StatusCode == http.StatusOK
}

// APIError 表示网关返回的错误结构。
type APIError struct {
	Code      int    `json:"-"`
	Message   string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "api error"
	}
	if e.RequestID != "" {
		return fmt.Sprintf("API error %d: %s\n  Request ID: %s", e.Code, msg, e.RequestID)
	}
	return fmt.Sprintf("API error %d: %s", e.Code, msg)
}

// Generate 发送生成请求。
func (c *Client) Generate(ctx context.Context, req *domain.BlogRequest) (*GenerateResult, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	status, body, err := c.do(ctx, http.MethodPost, c.routePath, data)
	if err != nil {
		return nil, err
	}

	// 函数响应体是 JSON 字符串，其他格式视为网关错误
	var message string
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, newAPIError(status, body)
	}

	return &GenerateResult{
		StatusCode: status,
		Message:    message,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Schedule 获取网关上已注册的定时任务。
func (c *Client) Schedule(ctx context.Context) ([]scheduler.ScheduledEntry, error) {
	var resp struct {
		Entries []scheduler.ScheduledEntry `json:"entries"`
	}
	if err := c.getJSON(ctx, "/schedule", &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Health 检查网关是否可用。
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	return c.getJSON(ctx, "/health", &resp)
}

func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return newAPIError(status, body)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// do 是内部通用请求方法，返回状态码和响应体。
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{}
	if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Code = status
	return apiErr
}
