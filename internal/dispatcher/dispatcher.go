// Package dispatcher 实现博客生成函数的调用入口。
// 分发器解析请求体中的主题，调用推理客户端生成正文，派生存储键并写入对象存储，
// 最后返回只包含 200 或 500 的响应。同一个分发器服务于 Lambda、本地网关、定时任务和 NATS 触发器。
package dispatcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Generator 根据主题生成正文。
type Generator interface {
	Generate(ctx context.Context, topic domain.Topic) domain.InferenceResult
}

// ArtifactWriter 把文章写入对象存储。
type ArtifactWriter interface {
	Write(ctx context.Context, artifact *domain.Artifact) error
}

// ArtifactNotifier 在文章写入成功后发出通知。
type ArtifactNotifier interface {
	ArtifactSaved(ctx context.Context, artifact *domain.Artifact) error
}

// Options 分发器选项。
type Options struct {
	// KeyPrefix 存储键前缀
	KeyPrefix string
	// StoragePolicy 存储写入失败时的处理策略（best_effort、strict）
	StoragePolicy string
	// Now 时钟，为 nil 时使用 time.Now
	Now func() time.Time
}

// Dispatcher 是函数调用的编排者。
type Dispatcher struct {
	generator Generator
	writer    ArtifactWriter
	notifier  ArtifactNotifier
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	keyPrefix string
	strict    bool
	now       func() time.Time
}

// New 创建分发器。
//
// 参数：
//   - generator: 推理客户端
//   - writer: 存储写入器
//   - opts: 存储键前缀、存储策略与时钟
//   - m: 指标收集器，可为 nil
//   - logger: 日志记录器
//
// 返回值：
//   - *Dispatcher: 分发器实例
func New(generator Generator, writer ArtifactWriter, opts Options, m *metrics.Metrics, logger *logrus.Logger) *Dispatcher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		generator: generator,
		writer:    writer,
		metrics:   m,
		logger:    logger,
		keyPrefix: opts.KeyPrefix,
		strict:    opts.StoragePolicy == config.StoragePolicyStrict,
		now:       now,
	}
}

// WithNotifier 设置文章保存通知器，通知失败只记录日志。
func (d *Dispatcher) WithNotifier(n ArtifactNotifier) *Dispatcher {
	d.notifier = n
	return d
}

// Handle 处理本地网关转换出的 API Gateway 代理事件，触发方式记为 http。
// 返回的 error 始终为 nil：所有失败都以 500 响应体现。
func (d *Dispatcher) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return d.handle(ctx, req, domain.TriggerHTTP)
}

// HandleLambda 是 Lambda 处理函数，触发方式记为 lambda。
func (d *Dispatcher) HandleLambda(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return d.handle(ctx, req, domain.TriggerLambda)
}

func (d *Dispatcher) handle(ctx context.Context, req events.APIGatewayProxyRequest, trigger domain.TriggerType) (events.APIGatewayProxyResponse, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			d.logger.WithContext(ctx).WithError(err).Error("Failed to decode base64 request body")
			d.metrics.RecordInvocation(string(trigger), http.StatusInternalServerError, 0)
			return ToProxyResponse(domain.Failure(domain.MessageGenerateFailed)), nil
		}
		body = decoded
	}

	resp := d.Dispatch(ctx, body, trigger)
	return ToProxyResponse(resp), nil
}

// ToProxyResponse 把响应转换为 API Gateway 代理响应。
func ToProxyResponse(resp domain.Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       resp.Body(),
	}
}

// Dispatch 处理一次调用。
// 该方法执行以下步骤：
//  1. 解析请求体中的 blog_topic（缺失时主题为 "None"）
//  2. 调用推理客户端生成正文，失败或无内容时直接返回 500，不写存储
//  3. 以当前时间派生存储键并写入，写入失败按存储策略处理
//  4. 写入成功后发送通知（尽力而为）
//
// 参数：
//   - ctx: 上下文，若携带 Lambda 上下文则使用其请求 ID
//   - body: 原始请求体
//   - trigger: 触发方式，仅用于日志和指标
//
// 返回值：
//   - domain.Response: 200 或 500 响应
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte, trigger domain.TriggerType) (resp domain.Response) {
	inv := domain.NewInvocation(requestID(ctx), trigger, d.now())

	ctx, span := telemetry.StartSpan(ctx, "dispatcher.Dispatch")
	defer span.End()
	telemetry.AddSpanAttributes(ctx,
		attribute.String("invocation.id", inv.ID),
		attribute.String("invocation.trigger", string(trigger)),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			telemetry.RecordError(ctx, err)
			resp = d.fail(inv, domain.MessageGenerateFailed, err)
		}
		telemetry.AddSpanAttributes(ctx, attribute.Int("http.status_code", resp.StatusCode))
		d.finish(ctx, inv, resp)
	}()

	req, err := domain.ParseBlogRequest(body)
	if err != nil {
		return d.fail(inv, domain.MessageGenerateFailed, err)
	}
	inv.Topic = req.Topic.String()
	telemetry.AddSpanAttributes(ctx, attribute.String("blog.topic", inv.Topic))

	result := d.generator.Generate(ctx, req.Topic)
	inv.InferenceStatus = result.Status
	if !result.OK() {
		return d.fail(inv, domain.MessageGenerateFailed, result.Err)
	}

	artifact := domain.NewArtifact(d.keyPrefix, result.Text, req.Topic, d.now())
	inv.ArtifactKey = artifact.Key

	if err := d.writer.Write(ctx, artifact); err != nil {
		inv.StorageError = err.Error()
		if d.strict {
			return d.fail(inv, domain.MessageSaveFailed, err)
		}
		d.logger.WithContext(ctx).WithError(err).WithField("invocation_id", inv.ID).
			Warn("Blog post was generated but could not be saved")
	} else {
		d.notify(ctx, artifact)
	}

	inv.Complete(d.now())
	return domain.Success()
}

func (d *Dispatcher) notify(ctx context.Context, artifact *domain.Artifact) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.ArtifactSaved(ctx, artifact); err != nil {
		d.logger.WithContext(ctx).WithError(err).WithField("key", artifact.Key).
			Warn("Failed to publish artifact saved event")
	}
}

func (d *Dispatcher) fail(inv *domain.Invocation, message string, err error) domain.Response {
	errMsg := message
	if err != nil {
		errMsg = err.Error()
	}
	inv.Fail(errMsg, d.now())
	return domain.Failure(message)
}

// finish 记录调用日志与指标。
func (d *Dispatcher) finish(ctx context.Context, inv *domain.Invocation, resp domain.Response) {
	if inv.CompletedAt == nil {
		inv.Complete(d.now())
	}

	d.metrics.RecordInvocation(string(inv.TriggerType), resp.StatusCode, float64(inv.DurationMs))

	logEntry := d.logger.WithContext(ctx).WithFields(logrus.Fields{
		"invocation_id":    inv.ID,
		"trigger":          inv.TriggerType,
		"topic":            inv.Topic,
		"status":           inv.Status,
		"inference_status": inv.InferenceStatus,
		"artifact_key":     inv.ArtifactKey,
		"status_code":      resp.StatusCode,
		"duration_ms":      inv.DurationMs,
	})
	if inv.StorageError != "" {
		logEntry = logEntry.WithField("storage_error", inv.StorageError)
	}

	if resp.StatusCode == http.StatusOK {
		logEntry.Info("Invocation completed")
		return
	}
	logEntry.WithField("error", inv.Error).Error("Invocation failed")
}

// requestID 返回 Lambda 请求 ID，不在 Lambda 中运行时生成一个新的 ID。
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.New().String()
}
