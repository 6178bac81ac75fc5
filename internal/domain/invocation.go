// Package domain 定义了博客生成函数的核心领域模型。
package domain

import (
	"time"
)

// InvocationStatus 表示一次函数调用的状态类型。
type InvocationStatus string

// 调用状态常量定义
const (
	// InvocationStatusRunning 表示调用正在执行中
	InvocationStatusRunning InvocationStatus = "running"
	// InvocationStatusSuccess 表示文章已生成并完成写入尝试
	InvocationStatusSuccess InvocationStatus = "success"
	// InvocationStatusFailed 表示调用以 500 结束
	InvocationStatusFailed InvocationStatus = "failed"
)

// TriggerType 表示触发调用的方式类型。
type TriggerType string

// 触发类型常量定义
const (
	// TriggerHTTP 表示通过本地网关的 HTTP 请求触发
	TriggerHTTP TriggerType = "http"
	// TriggerLambda 表示由 Lambda 运行时转交的 API Gateway 代理事件触发
	TriggerLambda TriggerType = "lambda"
	// TriggerCron 表示通过定时任务触发
	TriggerCron TriggerType = "cron"
	// TriggerEvent 表示通过 NATS 生成请求消息触发
	TriggerEvent TriggerType = "event"
)

// Invocation 记录一次调用的过程信息，仅用于日志和指标，不做持久化。
type Invocation struct {
	// ID 是调用标识（Lambda 请求 ID 或本地生成的 ID）
	ID string `json:"id"`
	// TriggerType 是触发调用的方式
	TriggerType TriggerType `json:"trigger_type"`
	// Topic 是请求中的主题
	Topic string `json:"topic"`
	// Status 是调用的当前状态
	Status InvocationStatus `json:"status"`
	// InferenceStatus 是推理结果类型
	InferenceStatus ResultStatus `json:"inference_status,omitempty"`
	// ArtifactKey 是写入的存储键（仅在推理成功时有值）
	ArtifactKey string `json:"artifact_key,omitempty"`
	// StorageError 是被吞掉或上抛的存储错误信息
	StorageError string `json:"storage_error,omitempty"`
	// Error 是导致调用失败的原因
	Error string `json:"error,omitempty"`
	// StartedAt 是调用开始时间
	StartedAt time.Time `json:"started_at"`
	// CompletedAt 是调用结束时间
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// DurationMs 是调用耗时（单位：毫秒）
	DurationMs int64 `json:"duration_ms"`
}

// NewInvocation 创建一条处于 running 状态的调用记录。
func NewInvocation(id string, triggerType TriggerType, startedAt time.Time) *Invocation {
	return &Invocation{
		ID:          id,
		TriggerType: triggerType,
		Status:      InvocationStatusRunning,
		StartedAt:   startedAt,
	}
}

// Complete 标记调用成功结束。
func (i *Invocation) Complete(now time.Time) {
	i.Status = InvocationStatusSuccess
	i.finish(now)
}

// Fail 标记调用失败并记录原因。
func (i *Invocation) Fail(errMsg string, now time.Time) {
	i.Status = InvocationStatusFailed
	i.Error = errMsg
	i.finish(now)
}

func (i *Invocation) finish(now time.Time) {
	i.CompletedAt = &now
	i.DurationMs = now.Sub(i.StartedAt).Milliseconds()
}
