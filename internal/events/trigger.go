package events

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/telemetry"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// requestConsumer 是生成请求的持久消费者名称。
const requestConsumer = "blog-generator"

// maxRequestDeliveries 是一条生成请求的最大投递次数。
// 每条请求只调用一次模型，超过 AckWait 未确认的消息也不会重投。
const maxRequestDeliveries = 1

// Dispatcher 定义触发器所需的最小分发能力。
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte, trigger domain.TriggerType) domain.Response
}

// TriggerManager 订阅生成请求 subject，并在消息到达时调用分发器生成文章。
type TriggerManager struct {
	eventBus   *EventBus
	dispatcher Dispatcher
	ackWait    time.Duration
	logger     *logrus.Logger
}

// NewTriggerManager 创建触发器管理器。
// ackWait 通常取推理读取超时加上存储写入的余量。
func NewTriggerManager(eventBus *EventBus, dispatcher Dispatcher, ackWait time.Duration, logger *logrus.Logger) *TriggerManager {
	return &TriggerManager{
		eventBus:   eventBus,
		dispatcher: dispatcher,
		ackWait:    ackWait,
		logger:     logger,
	}
}

// Register 订阅生成请求 subject。
func (tm *TriggerManager) Register(ctx context.Context, subject string) error {
	if err := tm.eventBus.Subscribe(ctx, subject, requestConsumer, tm.ackWait, maxRequestDeliveries, tm.HandleEvent); err != nil {
		return err
	}

	tm.logger.WithFields(logrus.Fields{
		"subject":  subject,
		"consumer": requestConsumer,
	}).Info("Generation request trigger registered")
	return nil
}

// HandleEvent 把事件数据作为请求体交给分发器。
// 分发结果无论成败都确认消息；非 200 响应只记录日志，不会再次调用模型。
func (tm *TriggerManager) HandleEvent(ctx context.Context, event *Event) error {
	if event.Type != EventTypeGenerationRequested {
		tm.logger.WithFields(logrus.Fields{
			"event_id": event.ID,
			"type":     event.Type,
		}).Debug("Ignoring event")
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "events.HandleEvent")
	defer span.End()
	telemetry.AddSpanAttributes(ctx, attribute.String("event.id", event.ID))

	resp := tm.dispatcher.Dispatch(ctx, event.Data, domain.TriggerEvent)
	if resp.StatusCode != http.StatusOK {
		telemetry.RecordError(ctx, fmt.Errorf("generation request %s failed: %s", event.ID, resp.Message))
		telemetry.EntryWithTraceContext(ctx, tm.logger.WithFields(logrus.Fields{
			"event_id":    event.ID,
			"status_code": resp.StatusCode,
			"message":     resp.Message,
		})).Warn("Generation request failed")
	}
	return nil
}
