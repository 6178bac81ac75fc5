// Package events 提供博客事件总线与生成请求触发器。
// 当前实现基于 NATS JetStream：文章写入成功后发布 blog.post.saved 事件，
// 网关可订阅生成请求 subject，把消息转交给分发器异步生成文章。
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/sirupsen/logrus"
)

// StreamName 是承载全部博客事件的 JetStream Stream 名称。
const StreamName = "BLOG_EVENTS"

// 事件类型常量定义
const (
	// EventTypeArtifactSaved 表示文章已写入对象存储
	EventTypeArtifactSaved = "blog.post.saved"
	// EventTypeGenerationRequested 表示请求生成一篇文章
	EventTypeGenerationRequested = "blog.post.requested"
)

// EventBus 封装 NATS/JetStream 连接与常用发布/订阅操作。
type EventBus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Logger
}

// Event 表示博客事件（JSON 格式）。
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Subject   string          `json:"subject"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// ArtifactSavedData 是 blog.post.saved 事件的数据部分。
type ArtifactSavedData struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Size      int       `json:"size"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

// EventHandler 定义事件处理回调。返回错误时消息会被 Term，不再投递。
type EventHandler func(ctx context.Context, event *Event) error

// NewEventBus 创建 EventBus 并初始化 BLOG_EVENTS Stream。
func NewEventBus(natsURL string, logger *logrus.Logger) (*EventBus, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("blogsmith"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	// 不存在则创建，存在则尝试更新配置
	stream := &nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{"blog.>"},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour * 7, // 保留 7 天
	}
	if _, err := js.AddStream(stream); err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		if _, err := js.UpdateStream(stream); err != nil {
			logger.WithError(err).Warn("Failed to create or update event stream")
		}
	}

	return &EventBus{
		conn:   nc,
		js:     js,
		logger: logger,
	}, nil
}

// Close 关闭底层 NATS 连接。
func (eb *EventBus) Close() error {
	eb.conn.Close()
	return nil
}

// Publish 发布事件到指定 subject。
func (eb *EventBus) Publish(ctx context.Context, subject string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = eb.js.Publish(subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("Event published")

	return nil
}

// Subscribe 以持久消费者订阅 subject。
// ackWait 应大于单条消息的最长处理时间，否则消息会在处理中被重复投递；
// maxDeliver 限制失败消息的最大投递次数。ctx 取消时将自动取消订阅。
func (eb *EventBus) Subscribe(ctx context.Context, subject, durable string, ackWait time.Duration, maxDeliver int, handler EventHandler) error {
	sub, err := eb.js.Subscribe(subject, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			eb.logger.WithError(err).Error("Failed to unmarshal event")
			// 格式错误的消息重投也不会成功
			msg.Term()
			return
		}

		if err := handler(ctx, &event); err != nil {
			eb.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to handle event")
			// 处理失败的消息不重投
			msg.Term()
			return
		}

		msg.Ack()
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(maxDeliver),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()

	return nil
}

// NewArtifactSavedEvent 构建文章保存事件。
func NewArtifactSavedEvent(subject, bucket string, artifact *domain.Artifact, now time.Time) (*Event, error) {
	data, err := json.Marshal(ArtifactSavedData{
		Bucket:    bucket,
		Key:       artifact.Key,
		Size:      artifact.Size(),
		Topic:     artifact.Topic.String(),
		CreatedAt: artifact.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeArtifactSaved,
		Source:    "dispatcher",
		Subject:   subject,
		Data:      data,
		Timestamp: now,
	}, nil
}

// NewGenerationRequestedEvent 构建生成请求事件，数据部分与 HTTP 请求体格式相同。
func NewGenerationRequestedEvent(subject string, req *domain.BlogRequest, now time.Time) (*Event, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      EventTypeGenerationRequested,
		Source:    "blogctl",
		Subject:   subject,
		Data:      data,
		Timestamp: now,
	}, nil
}

// PublishGenerationRequested 发布"请求生成文章"事件并返回事件 ID。
func (eb *EventBus) PublishGenerationRequested(ctx context.Context, subject string, req *domain.BlogRequest) (string, error) {
	event, err := NewGenerationRequestedEvent(subject, req, time.Now())
	if err != nil {
		return "", err
	}
	if err := eb.Publish(ctx, subject, event); err != nil {
		return "", err
	}
	return event.ID, nil
}

// ArtifactNotifier 在文章写入成功后发布 blog.post.saved 事件。
type ArtifactNotifier struct {
	bus     *EventBus
	subject string
	bucket  string
}

// NewArtifactNotifier 创建文章保存事件的发布器。
func NewArtifactNotifier(bus *EventBus, subject, bucket string) *ArtifactNotifier {
	return &ArtifactNotifier{bus: bus, subject: subject, bucket: bucket}
}

// ArtifactSaved 发布文章保存事件。
func (n *ArtifactNotifier) ArtifactSaved(ctx context.Context, artifact *domain.Artifact) error {
	event, err := NewArtifactSavedEvent(n.subject, n.bucket, artifact, time.Now())
	if err != nil {
		return err
	}
	return n.bus.Publish(ctx, n.subject, event)
}
