// Package awsclient 负责构建推理客户端和存储写入器共用的 AWS SDK 配置。
// 凭证解析完全交给 SDK 默认链（环境变量、共享配置、Lambda 执行角色）。
package awsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/oriys/blogsmith/internal/telemetry"
)

// Options 描述一次 SDK 配置加载所需的参数。
type Options struct {
	// Region 目标区域，为空时使用 SDK 默认区域解析
	Region string
	// FallbackRegion Region 为空且 SDK 也解析不到区域时使用
	FallbackRegion string
	// Timeout 单次 HTTP 请求的整体超时，0 表示使用 SDK 默认值
	Timeout time.Duration
	// MaxAttempts 传输层最大尝试次数（含首次），0 表示使用 SDK 默认值
	MaxAttempts int
	// RetryMode 重试模式（standard、adaptive），为空时使用 SDK 默认值
	RetryMode string
}

// Load 按给定参数加载 aws.Config。
// HTTP 客户端带有追踪传输层，出站请求会成为当前 Span 的子 Span。
//
// 参数：
//   - ctx: 上下文
//   - opts: 区域、超时与重试参数
//
// 返回值：
//   - aws.Config: 可用于 bedrockruntime.NewFromConfig / s3.NewFromConfig 的配置
//   - error: 重试模式无效或默认配置链加载失败时返回错误
func Load(ctx context.Context, opts Options) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(telemetry.InstrumentedHTTPClient(opts.Timeout)),
	}

	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.MaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.MaxAttempts))
	}
	if opts.RetryMode != "" {
		mode, err := aws.ParseRetryMode(opts.RetryMode)
		if err != nil {
			return aws.Config{}, fmt.Errorf("invalid retry mode %q: %w", opts.RetryMode, err)
		}
		loadOpts = append(loadOpts, awsconfig.WithRetryMode(mode))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = opts.FallbackRegion
	}
	return cfg, nil
}
