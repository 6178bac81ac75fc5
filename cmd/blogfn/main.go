// Package main 是博客生成函数的 Lambda 入口点。
// 配置全部来自环境变量（可选 BLOGSMITH_CONFIG 指向 YAML 文件），
// 每次调用由 dispatcher.HandleLambda 处理 API Gateway 代理事件。
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/dispatcher"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	logger := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	ctx := context.Background()
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		SampleRate:  cfg.Telemetry.SampleRate,
		Environment: cfg.Telemetry.Environment,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize telemetry, continuing without tracing")
		tel, _ = telemetry.New(ctx, telemetry.Config{})
	} else if tel.IsEnabled() {
		logger.AddHook(telemetry.NewLogrusHook())
	}

	// Lambda 中没有抓取端，指标仅在启用时注册，供嵌入测试或扩展使用
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics(cfg.Metrics.Namespace)
	}

	components, err := dispatcher.FromConfig(ctx, cfg, m, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize blog generation function")
	}

	handler := func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		resp, err := components.Dispatcher.HandleLambda(ctx, req)
		// 执行环境可能在两次调用之间被冻结，需在返回前导出 Span
		if flushErr := tel.ForceFlush(ctx); flushErr != nil {
			logger.WithError(flushErr).Debug("Failed to flush spans")
		}
		return resp, err
	}

	lambda.StartWithOptions(handler, lambda.WithEnableSIGTERM(func() {
		components.Close()
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Telemetry shutdown error")
		}
	}))
}
