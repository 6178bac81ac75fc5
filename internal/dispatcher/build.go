package dispatcher

import (
	"context"
	"fmt"

	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/events"
	"github.com/oriys/blogsmith/internal/inference"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/oriys/blogsmith/internal/storage"
	"github.com/sirupsen/logrus"
)

// Components 是按配置组装好的运行时组件。
type Components struct {
	Dispatcher *Dispatcher
	Inference  *inference.Client
	Storage    *storage.S3Writer
	// EventBus 未配置 NATS 或连接失败时为 nil
	EventBus *events.EventBus
}

// Close 释放组件持有的连接。
func (c *Components) Close() {
	if c.EventBus != nil {
		c.EventBus.Close()
	}
}

// FromConfig 按配置组装推理客户端、存储写入器、可选的事件总线与分发器。
// 推理客户端惰性构造；事件总线连接失败只记录警告。
//
// 参数：
//   - ctx: 上下文
//   - cfg: 完整配置
//   - m: 指标收集器，可为 nil
//   - logger: 日志记录器
//
// 返回值：
//   - *Components: 组装好的组件
//   - error: 存储客户端无法构建时返回错误
func FromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) (*Components, error) {
	gen := inference.NewBedrockClient(cfg.Inference, m, logger)

	writer, err := storage.New(ctx, cfg.Storage, cfg.Inference.Region, 0, m, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage writer: %w", err)
	}

	d := New(gen, writer, Options{
		KeyPrefix:     cfg.Storage.KeyPrefix,
		StoragePolicy: cfg.Dispatch.StoragePolicy,
	}, m, logger)

	c := &Components{
		Dispatcher: d,
		Inference:  gen,
		Storage:    writer,
	}

	if cfg.Events.NatsURL != "" {
		bus, err := events.NewEventBus(cfg.Events.NatsURL, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, artifact events disabled")
		} else {
			c.EventBus = bus
			d.WithNotifier(events.NewArtifactNotifier(bus, cfg.Events.Subject, writer.Bucket()))
			logger.WithField("subject", cfg.Events.Subject).Info("Artifact events enabled")
		}
	}

	logger.WithFields(logrus.Fields{
		"model_id":       gen.ModelID(),
		"region":         cfg.Inference.Region,
		"bucket":         cfg.Storage.Bucket,
		"key_prefix":     cfg.Storage.KeyPrefix,
		"storage_policy": cfg.Dispatch.StoragePolicy,
	}).Info("Blog generation function configured")

	return c, nil
}
