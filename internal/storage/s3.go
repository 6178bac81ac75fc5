// Package storage 负责把生成的博客文章写入对象存储（S3 或兼容 S3 的服务）。
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oriys/blogsmith/internal/awsclient"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentType 是写入对象的内容类型。
const ContentType = "text/plain; charset=utf-8"

// PutObjectAPI 是写入器依赖的 S3 接口子集。
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer 将文章写入固定桶。
// 同名键会被覆盖，写入器不做存在性检查。
type S3Writer struct {
	api     PutObjectAPI
	bucket  string
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewS3Writer 使用给定的 API 客户端创建写入器。
func NewS3Writer(api PutObjectAPI, bucket string, m *metrics.Metrics, logger *logrus.Logger) *S3Writer {
	return &S3Writer{
		api:     api,
		bucket:  bucket,
		logger:  logger,
		metrics: m,
	}
}

// New 根据存储配置构建 S3 客户端并返回写入器。
//
// 参数：
//   - ctx: 上下文
//   - cfg: 存储配置（桶、区域、可选自定义端点）
//   - fallbackRegion: cfg.Region 为空且 SDK 解析不到区域时使用
//   - timeout: 单次请求超时
//   - m: 指标收集器，可为 nil
//   - logger: 日志记录器
//
// 返回值：
//   - *S3Writer: 写入器实例
//   - error: AWS 配置加载失败时返回错误
func New(ctx context.Context, cfg config.StorageConfig, fallbackRegion string, timeout time.Duration, m *metrics.Metrics, logger *logrus.Logger) (*S3Writer, error) {
	awsCfg, err := awsclient.Load(ctx, awsclient.Options{
		Region:         cfg.Region,
		FallbackRegion: fallbackRegion,
		Timeout:        timeout,
	})
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return NewS3Writer(client, cfg.Bucket, m, logger), nil
}

// Bucket 返回目标桶名称。
func (w *S3Writer) Bucket() string {
	return w.bucket
}

// Write 把文章正文写入 Artifact.Key 对应的对象。
// 失败时返回包装了 domain.ErrStorageWrite 的错误，由调用方按存储策略处理。
func (w *S3Writer) Write(ctx context.Context, artifact *domain.Artifact) error {
	ctx, span := telemetry.StartSpan(ctx, "storage.Write",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("storage.bucket", w.bucket),
			attribute.String("storage.key", artifact.Key),
			attribute.Int("storage.size", artifact.Size()),
		),
	)
	defer span.End()

	start := time.Now()
	_, err := w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(artifact.Key),
		Body:          strings.NewReader(artifact.Content),
		ContentType:   aws.String(ContentType),
		ContentLength: aws.Int64(int64(artifact.Size())),
	})
	durationMs := float64(time.Since(start).Milliseconds())

	logEntry := w.logger.WithContext(ctx).WithFields(logrus.Fields{
		"bucket": w.bucket,
		"key":    artifact.Key,
	})

	if err != nil {
		w.metrics.RecordStorageWrite(false, 0, durationMs)
		telemetry.RecordError(ctx, err)
		logEntry.WithError(err).Error("Failed to save blog post")
		return fmt.Errorf("%w: s3://%s/%s: %w", domain.ErrStorageWrite, w.bucket, artifact.Key, err)
	}

	w.metrics.RecordStorageWrite(true, artifact.Size(), durationMs)
	logEntry.WithField("size", artifact.Size()).Info("Blog post saved")
	return nil
}
