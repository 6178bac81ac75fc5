// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 本文件实现 HTTP 中间件和客户端传输层的追踪集成。
package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware 返回一个为传入请求创建追踪 Span 的中间件。
// Span 名称格式为 "HTTP方法 路径"，如 "POST /blog-generation"。
//
// 使用示例：
//
//	router := chi.NewRouter()
//	router.Use(telemetry.HTTPMiddleware("blogsmith"))
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(otel.GetTracerProvider()),
			otelhttp.WithPropagators(otel.GetTextMapPropagator()),
			otelhttp.WithSpanOptions(
				trace.WithAttributes(
					attribute.String("service.name", serviceName),
				),
			),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// HTTPClientTransport 返回一个带追踪功能的 http.RoundTripper。
// base 为 nil 时使用 http.DefaultTransport 的克隆。
func HTTPClientTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	return otelhttp.NewTransport(base,
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	)
}

// InstrumentedHTTPClient 返回带追踪功能和整体超时的 HTTP 客户端。
// AWS SDK 客户端通过它发出请求，超时即推理调用的读取超时。
//
// 参数：
//   - timeout: 单次请求的整体超时，0 表示不限制
func InstrumentedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: HTTPClientTransport(nil),
	}
}
