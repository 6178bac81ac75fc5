package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/blogsmith/internal/auth"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// RouterConfig 路由器配置选项
type RouterConfig struct {
	// Handler API处理器
	Handler *Handler
	// RoutePath 生成文章的路由路径，默认 /blog-generation
	RoutePath string
	// RequestTimeout 单个请求的超时时间，需覆盖推理读取超时
	RequestTimeout time.Duration
	// ServiceName 遥测中间件使用的服务名
	ServiceName string
	// Auth 认证中间件，为 nil 时不认证
	Auth *auth.Middleware
	// Logger 日志记录器
	Logger *logrus.Logger
}

// NewRouter 创建并配置HTTP路由器。
//
// 路由结构：
//
//	POST /blog-generation  - 生成并保存博客文章（启用认证时需要凭据）
//	GET  /schedule         - 已注册的定时任务（启用认证时需要凭据）
//	GET  /health           - 基本健康检查
//	GET  /health/live      - 存活探针
//	GET  /metrics          - Prometheus指标端点
func NewRouter(cfg *RouterConfig) *chi.Mux {
	h := cfg.Handler
	routePath := cfg.RoutePath
	if routePath == "" {
		routePath = "/blog-generation"
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// 中间件按照添加顺序执行，形成洋葱模型
	r.Use(telemetry.HTTPMiddleware(cfg.ServiceName))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 请求日志输出到 logrus
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: cfg.Logger, NoColor: true}))
	} else {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(corsMiddleware)

	r.Get("/health", h.Health)
	r.Get("/health/live", h.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Authenticate)
		}
		r.Post(routePath, h.Generate)
		r.Get("/schedule", h.Schedule)
	})

	return r
}

// corsMiddleware 跨域资源共享中间件。
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		// 处理预检请求
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
