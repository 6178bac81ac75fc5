// Package metrics 提供 Prometheus 指标采集与上报的统一封装。
// 该包集中定义调用、推理和存储写入三类指标，便于各组件复用并保持标签一致。
// 所有记录方法对 nil 接收者安全，未启用指标时组件可以直接传入 nil。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 封装函数运行时指标集合。
//
// 指标分类:
//   - 调用指标: 跟踪调用数量、耗时和最终状态码
//   - 推理指标: 跟踪模型调用的结果类型和耗时
//   - 存储指标: 跟踪对象写入结果、耗时和文章大小
type Metrics struct {
	// ========== 调用相关指标 ==========

	// InvocationsTotal 调用总次数计数器
	// 标签: trigger, status_code
	InvocationsTotal *prometheus.CounterVec

	// InvocationDuration 调用耗时直方图（单位：毫秒）
	// 标签: trigger
	InvocationDuration *prometheus.HistogramVec

	// ========== 推理相关指标 ==========

	// InferenceRequests 推理调用次数计数器
	// 标签: model_id, outcome (generated/no_content/failed)
	InferenceRequests *prometheus.CounterVec

	// InferenceDuration 推理调用耗时直方图（单位：毫秒）
	// 桶边界覆盖到 300 秒的读取超时
	InferenceDuration *prometheus.HistogramVec

	// ========== 存储相关指标 ==========

	// StorageWrites 对象写入次数计数器
	// 标签: result (success/error)
	StorageWrites *prometheus.CounterVec

	// StorageWriteDuration 对象写入耗时直方图（单位：毫秒）
	StorageWriteDuration prometheus.Histogram

	// ArtifactBytes 写入文章的大小分布（字节）
	ArtifactBytes prometheus.Histogram
}

// NewMetrics 创建并在默认注册表中注册一组指标。
// namespace 用于作为所有指标名前缀。
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry 创建并在指定注册表中注册一组指标。
// 测试中使用独立的注册表，避免重复注册导致 panic。
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of blog generation invocations",
			},
			[]string{"trigger", "status_code"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_ms",
				Help:      "Blog generation invocation duration in milliseconds",
				Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
			},
			[]string{"trigger"},
		),
		InferenceRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_requests_total",
				Help:      "Total number of inference requests by outcome",
			},
			[]string{"model_id", "outcome"},
		),
		InferenceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_duration_ms",
				Help:      "Inference request duration in milliseconds",
				Buckets:   []float64{100, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000, 300000},
			},
			[]string{"model_id"},
		),
		StorageWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_writes_total",
				Help:      "Total number of artifact writes by result",
			},
			[]string{"result"},
		),
		StorageWriteDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_write_duration_ms",
				Help:      "Artifact write duration in milliseconds",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
		),
		ArtifactBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "artifact_bytes",
				Help:      "Size of persisted blog posts in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 8),
			},
		),
	}
}

// RecordInvocation 记录一次调用的最终状态码和耗时。
func (m *Metrics) RecordInvocation(trigger string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(trigger, statusCodeLabel(statusCode)).Inc()
	m.InvocationDuration.WithLabelValues(trigger).Observe(durationMs)
}

// RecordInference 记录一次推理调用。
func (m *Metrics) RecordInference(modelID, outcome string, durationMs float64) {
	if m == nil {
		return
	}
	m.InferenceRequests.WithLabelValues(modelID, outcome).Inc()
	m.InferenceDuration.WithLabelValues(modelID).Observe(durationMs)
}

// RecordStorageWrite 记录一次对象写入，成功时同时记录文章大小。
func (m *Metrics) RecordStorageWrite(success bool, sizeBytes int, durationMs float64) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "error"
	}
	m.StorageWrites.WithLabelValues(result).Inc()
	m.StorageWriteDuration.Observe(durationMs)
	if success {
		m.ArtifactBytes.Observe(float64(sizeBytes))
	}
}

func statusCodeLabel(code int) string {
	switch code {
	case 200:
		return "200"
	case 500:
		return "500"
	default:
		return "other"
	}
}
