// Package inference 实现博客正文的推理客户端。
// 客户端根据主题构造固定模板的提示词，调用托管文本生成模型（Bedrock InvokeModel），
// 解析响应中的 generation 字段，并以 domain.InferenceResult 的形式返回结果。
// 任何失败都会被记录日志并转换为 StatusFailed 结果，不会以 error 或 panic 的形式传播。
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/oriys/blogsmith/internal/awsclient"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const contentTypeJSON = "application/json"

// InvokeModelAPI 是推理客户端依赖的 Bedrock Runtime 接口子集。
// *bedrockruntime.Client 满足该接口，测试中使用内存实现替代。
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// APIFactory 构造 InvokeModelAPI。
// 构造在首次调用时执行，失败会作为本次推理的失败结果返回。
type APIFactory func(ctx context.Context) (InvokeModelAPI, error)

// BedrockFactory 返回基于 AWS SDK 默认配置链的 APIFactory。
// 读取超时、最大尝试次数和重试模式取自推理配置。
func BedrockFactory(cfg config.InferenceConfig) APIFactory {
	return func(ctx context.Context) (InvokeModelAPI, error) {
		awsCfg, err := awsclient.Load(ctx, awsclient.Options{
			Region:      cfg.Region,
			Timeout:     cfg.ReadTimeout,
			MaxAttempts: cfg.MaxAttempts,
			RetryMode:   cfg.RetryMode,
		})
		if err != nil {
			return nil, err
		}
		return bedrockruntime.NewFromConfig(awsCfg), nil
	}
}

// Client 是推理客户端。
// 同一实例可被并发调用；惰性构造的底层 API 客户端由互斥锁保护。
type Client struct {
	cfg     config.InferenceConfig
	factory APIFactory
	metrics *metrics.Metrics
	logger  *logrus.Logger

	mu  sync.Mutex
	api InvokeModelAPI
}

// NewClient 创建推理客户端。
//
// 参数：
//   - cfg: 推理配置（模型、生成参数、超时与重试）
//   - factory: 底层 API 客户端的构造函数
//   - m: 指标收集器，可为 nil
//   - logger: 日志记录器
//
// 返回值：
//   - *Client: 推理客户端实例
func NewClient(cfg config.InferenceConfig, factory APIFactory, m *metrics.Metrics, logger *logrus.Logger) *Client {
	return &Client{
		cfg:     cfg,
		factory: factory,
		metrics: m,
		logger:  logger,
	}
}

// NewBedrockClient 创建使用 Bedrock Runtime 的推理客户端。
func NewBedrockClient(cfg config.InferenceConfig, m *metrics.Metrics, logger *logrus.Logger) *Client {
	return NewClient(cfg, BedrockFactory(cfg), m, logger)
}

// ModelID 返回客户端使用的模型标识。
func (c *Client) ModelID() string {
	return c.cfg.ModelID
}

// Generate 为指定主题生成博客正文。
// 该方法执行以下操作：
//  1. 惰性构造底层 API 客户端
//  2. 构造提示词和生成参数并编码为 JSON
//  3. 调用模型（传输层重试由 SDK 负责）
//  4. 解析响应中的 generation 字段
//
// 返回值永远不会是 error：失败原因保存在 InferenceResult.Err 中。
func (c *Client) Generate(ctx context.Context, topic domain.Topic) (result domain.InferenceResult) {
	ctx, span := telemetry.StartSpan(ctx, "inference.Generate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("model.id", c.cfg.ModelID)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = c.fail(ctx, fmt.Errorf("%w: panic: %v", domain.ErrInferenceFailed, r))
		}
		span.SetAttributes(attribute.String("inference.status", string(result.Status)))
		c.metrics.RecordInference(c.cfg.ModelID, string(result.Status), float64(time.Since(start).Milliseconds()))
	}()

	api, err := c.client(ctx)
	if err != nil {
		return c.fail(ctx, err)
	}

	payload := NewPayload(c.cfg, topic)
	body, err := json.Marshal(payload)
	if err != nil {
		return c.fail(ctx, fmt.Errorf("%w: encode payload: %v", domain.ErrInferenceFailed, err))
	}

	c.entry(ctx).WithField("topic", topic.String()).Debug("Invoking model")

	out, err := api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.cfg.ModelID),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		return c.fail(ctx, fmt.Errorf("%w: %w", domain.ErrInferenceFailed, err))
	}
	if out == nil {
		return c.fail(ctx, fmt.Errorf("%w: empty response", domain.ErrInvalidResponse))
	}

	resp, result := parseResponse(out.Body)
	if result.Status == domain.StatusFailed {
		return c.fail(ctx, result.Err)
	}

	c.entry(ctx).WithFields(logrus.Fields{
		"status":                 result.Status,
		"stop_reason":            resp.StopReason,
		"prompt_token_count":     resp.PromptTokenCount,
		"generation_token_count": resp.GenerationTokenCount,
	}).Info("Model response received")

	if result.Status == domain.StatusNoContent {
		c.entry(ctx).Warn(domain.MessageNoContent)
	}
	return result
}

// client 返回底层 API 客户端，首次调用时构造。
// 构造失败不会被缓存，下一次调用会重新尝试。
func (c *Client) client(ctx context.Context) (InvokeModelAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return c.api, nil
	}
	if c.factory == nil {
		return nil, fmt.Errorf("%w: no client factory configured", domain.ErrInferenceFailed)
	}

	api, err := c.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: client construction: %w", domain.ErrInferenceFailed, err)
	}
	c.api = api
	return api, nil
}

// fail 记录错误并返回失败结果。
func (c *Client) fail(ctx context.Context, err error) domain.InferenceResult {
	telemetry.RecordError(ctx, err)
	c.entry(ctx).WithError(err).Error("An error occurred while generating blog post")
	return domain.Failed(err)
}

func (c *Client) entry(ctx context.Context) *logrus.Entry {
	return c.logger.WithContext(ctx).WithField("model_id", c.cfg.ModelID)
}
