// Package main 是博客生成函数的本地网关入口点。
// 网关在本地或容器中以 HTTP 服务的形式运行与 Lambda 相同的处理函数，
// 并提供定时生成、NATS 生成请求订阅和 Prometheus 指标端点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/oriys/blogsmith/internal/api"
	"github.com/oriys/blogsmith/internal/auth"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/dispatcher"
	"github.com/oriys/blogsmith/internal/events"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/scheduler"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// main 是网关服务的主函数
// 它负责初始化所有依赖组件并启动 HTTP 服务器
func main() {
	// 配置文件为空时仅使用默认值和环境变量
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env-file", ".env", "Path to .env file (optional)")
	flag.Parse()

	// .env 不存在时忽略
	_ = godotenv.Load(*envFile)

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	logger := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	logger.WithFields(logrus.Fields{
		"port":  cfg.Server.HTTPPort,
		"route": cfg.Server.RoutePath,
	}).Info("Starting Blogsmith Gateway")

	// 初始化遥测系统 (OpenTelemetry)
	if cfg.Telemetry.Enabled {
		tel, err := telemetry.New(context.Background(), telemetry.Config{
			Enabled:     cfg.Telemetry.Enabled,
			Endpoint:    cfg.Telemetry.Endpoint,
			ServiceName: cfg.Telemetry.ServiceName,
			SampleRate:  cfg.Telemetry.SampleRate,
			Environment: cfg.Telemetry.Environment,
		})
		if err != nil {
			// 遥测初始化失败不影响主服务运行，仅记录警告
			logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		} else {
			defer tel.Shutdown(context.Background())
			logger.AddHook(telemetry.NewLogrusHook())
			logger.WithFields(logrus.Fields{
				"endpoint":    cfg.Telemetry.Endpoint,
				"sample_rate": cfg.Telemetry.SampleRate,
			}).Info("Telemetry initialized")
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	components, err := dispatcher.FromConfig(context.Background(), cfg, m, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize blog generation function")
	}
	defer components.Close()
	d := components.Dispatcher

	// 单次生成的最长处理时间：推理超时加上写入余量
	jobTimeout := cfg.Server.RequestTimeout

	// 初始化定时任务管理器
	cronMgr := scheduler.NewCronManager(d, jobTimeout, logger)
	if err := cronMgr.Start(cfg.Schedule); err != nil {
		logger.WithError(err).Fatal("Failed to start cron manager")
	}

	// 订阅 NATS 生成请求
	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	if components.EventBus != nil && cfg.Events.RequestSubject != "" {
		triggers := events.NewTriggerManager(components.EventBus, d, jobTimeout, logger)
		if err := triggers.Register(subCtx, cfg.Events.RequestSubject); err != nil {
			logger.WithError(err).Error("Failed to register generation request trigger")
		}
	}

	authMW := auth.FromConfig(cfg.Auth, logger)
	if authMW != nil {
		logger.WithFields(logrus.Fields{
			"api_keys": len(cfg.Auth.APIKeyHashes),
			"jwt":      cfg.Auth.JWTSecret != "",
		}).Info("Gateway authentication enabled")
	}

	router := api.NewRouter(&api.RouterConfig{
		Handler:        api.NewHandler(d, cronMgr, logger),
		RoutePath:      cfg.Server.RoutePath,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Telemetry.ServiceName,
		Auth:           authMW,
		Logger:         logger,
	})

	// 如果指标端口与主服务端口不同，单独启动指标服务器
	var metricsServer *http.Server
	if cfg.Metrics.Enabled && cfg.Server.MetricsPort != cfg.Server.HTTPPort {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.WithField("port", cfg.Server.MetricsPort).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Fatal("Metrics server failed")
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 10*time.Second, // 推理可能持续数分钟
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Server.HTTPPort).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// 监听 SIGINT (Ctrl+C) 和 SIGTERM (容器停止) 信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}

	subCancel()
	cronMgr.Stop(ctx)

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("Metrics server shutdown error")
		}
	}

	logger.Info("Server stopped")
}
