// Package api 提供本地网关的 HTTP 处理程序。
// 网关把 HTTP 请求转换为 API Gateway 代理事件，交给与 Lambda 相同的处理函数，
// 使本地运行与线上部署走完全一致的代码路径。
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/blogsmith/internal/auth"
	"github.com/oriys/blogsmith/internal/scheduler"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// DefaultMaxBodyBytes 是请求体的默认大小上限（1 MiB）。
const DefaultMaxBodyBytes = 1 << 20

// ProxyHandler 是 API Gateway 代理事件的处理函数，dispatcher.Dispatcher 满足该接口。
type ProxyHandler interface {
	Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// ScheduleLister 返回已注册的定时任务。
type ScheduleLister interface {
	Entries() []scheduler.ScheduledEntry
}

// Handler 封装网关的 HTTP 处理方法。
type Handler struct {
	fn           ProxyHandler
	schedule     ScheduleLister
	maxBodyBytes int64
	logger       *logrus.Logger
}

// NewHandler 创建处理器。schedule 可为 nil。
func NewHandler(fn ProxyHandler, schedule ScheduleLister, logger *logrus.Logger) *Handler {
	return &Handler{
		fn:           fn,
		schedule:     schedule,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger,
	}
}

// Generate 处理生成博客文章的请求。
// HTTP端点: POST /blog-generation（路径可配置）
//
// 请求体：{"blog_topic": "cats"}
//
// 返回值：
//   - 200: "Blog post generated and saved successfully"
//   - 500: "Error generating blog post" 或 "Error saving blog post"
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "failed to read request body")
		return
	}

	reqID := middleware.GetReqID(r.Context())
	if p := auth.GetPrincipal(r.Context()); p != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id":  reqID,
			"principal":   p.Subject,
			"auth_method": p.Method,
		}).Debug("Generation requested")
	}
	ctx := lambdacontext.NewContext(r.Context(), &lambdacontext.LambdaContext{AwsRequestID: reqID})

	resp, err := h.fn.Handle(ctx, ToProxyRequest(r, body))
	if err != nil {
		h.logger.WithError(err).WithField("request_id", reqID).Error("Handler returned an error")
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}

	respBody := []byte(resp.Body)
	if resp.IsBase64Encoded {
		if decoded, err := base64.StdEncoding.DecodeString(resp.Body); err == nil {
			respBody = decoded
		}
	}

	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)
}

// ToProxyRequest 把 HTTP 请求转换为 API Gateway 代理事件。
// 非 UTF-8 的请求体按 API Gateway 的做法进行 base64 编码。
func ToProxyRequest(r *http.Request, body []byte) events.APIGatewayProxyRequest {
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}

	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	req := events.APIGatewayProxyRequest{
		Resource:                        r.URL.Path,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               r.Header,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: r.URL.Query(),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  middleware.GetReqID(r.Context()),
			HTTPMethod: r.Method,
			Path:       r.URL.Path,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  remoteHost(r.RemoteAddr),
				UserAgent: r.UserAgent(),
			},
		},
	}

	// 与 API Gateway 自定义授权器一致，调用方身份放在 authorizer 上下文中
	if p := auth.GetPrincipal(r.Context()); p != nil {
		req.RequestContext.Authorizer = map[string]interface{}{
			"principalId": p.Subject,
			"authMethod":  p.Method,
		}
	}

	if utf8.Valid(body) {
		req.Body = string(body)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	}
	return req
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}

// Schedule 返回已注册的定时任务。
// HTTP端点: GET /schedule
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	entries := []scheduler.ScheduledEntry{}
	if h.schedule != nil {
		entries = h.schedule.Entries()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// Health 处理健康检查请求。
// HTTP端点: GET /health
//
// 返回值：{"status": "healthy"}
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Live 处理存活探针请求。
// HTTP端点: GET /health/live
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// writeJSON 将数据以JSON格式写入HTTP响应。
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse 是网关自身错误的响应结构体。
type ErrorResponse struct {
	Error     string `json:"error"`                // 错误消息
	RequestID string `json:"request_id,omitempty"` // 请求ID，用于关联日志
	TraceID   string `json:"trace_id,omitempty"`   // 启用追踪时的 Trace ID
}

// writeError 写入网关错误响应，request_id 取自 middleware.RequestID。
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetReqID(r.Context()),
		TraceID:   telemetry.TraceIDFromContext(r.Context()),
	})
}
