// Package telemetry 提供 OpenTelemetry 分布式追踪功能的封装。
// 本文件实现日志记录器的构建以及日志与追踪的集成，通过 Logrus Hook
// 自动将追踪上下文（Trace ID、Span ID）注入到日志条目中。
package telemetry

import (
	"context"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger 按日志配置创建 Logrus Logger。
//
// 参数：
//   - level: 日志级别（debug、info、warn、error），无法识别时使用 info
//   - format: 日志格式（json、text），默认 json
//   - out: 输出目标，为 nil 时使用 Logrus 默认输出（stderr）
//
// 返回：
//   - *logrus.Logger: 配置完成的日志记录器
func NewLogger(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	if out != nil {
		logger.SetOutput(out)
	}

	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// LogrusHook 是一个 Logrus 钩子，用于自动将追踪上下文添加到日志条目中。
type LogrusHook struct{}

// NewLogrusHook 创建一个新的 LogrusHook 实例。
//
// 使用示例：
//
//	logger := logrus.New()
//	logger.AddHook(telemetry.NewLogrusHook())
func NewLogrusHook() *LogrusHook {
	return &LogrusHook{}
}

// Levels 返回该钩子应该触发的日志级别列表。
func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire 在日志条目生成时被调用。
// 只有通过 WithContext 关联了有效 Span 的条目才会被添加 trace_id 和 span_id。
func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		return nil
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}

	spanCtx := span.SpanContext()
	entry.Data["trace_id"] = spanCtx.TraceID().String()
	entry.Data["span_id"] = spanCtx.SpanID().String()
	if spanCtx.IsSampled() {
		entry.Data["trace_sampled"] = true
	}

	return nil
}

// EntryWithTraceContext 向现有日志条目添加追踪上下文字段。
//
// 使用示例：
//
//	entry := logger.WithField("topic", topic)
//	entry = telemetry.EntryWithTraceContext(ctx, entry)
//	entry.Info("Generating blog post")
func EntryWithTraceContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return entry
	}

	spanCtx := span.SpanContext()
	return entry.WithFields(logrus.Fields{
		"trace_id":      spanCtx.TraceID().String(),
		"span_id":       spanCtx.SpanID().String(),
		"trace_sampled": spanCtx.IsSampled(),
	})
}
