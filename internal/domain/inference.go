// Package domain 定义了博客生成函数的核心领域模型。
package domain

// 推理结果的固定文本。
// 旧版调用方只能看到字符串，这些文本保留原有措辞以便日志和 CLI 输出保持一致。
const (
	// MessageNoContent 是模型未返回 generation 字段时的提示文本
	MessageNoContent = "Warning: No content generated"
	// MessageInferenceError 是推理失败时的提示文本
	MessageInferenceError = "Error generating blog post."
)

// ResultStatus 表示一次推理调用的结果类型。
type ResultStatus string

// 推理结果状态常量定义
const (
	// StatusGenerated 表示模型成功返回了正文
	StatusGenerated ResultStatus = "generated"
	// StatusNoContent 表示调用成功但响应中没有正文
	StatusNoContent ResultStatus = "no_content"
	// StatusFailed 表示客户端构造、网络调用或响应解析失败
	StatusFailed ResultStatus = "failed"
)

// InferenceResult 表示推理客户端的返回值。
// 调用方通过 Status 区分"正文"、"无内容"和"失败"，而不是比较字符串。
type InferenceResult struct {
	// Status 是结果类型
	Status ResultStatus
	// Text 是生成的正文，仅在 StatusGenerated 时有效
	Text string
	// Err 是失败原因，StatusNoContent 时为 ErrNoContent
	Err error
}

// Generated 创建一个成功结果。
func Generated(text string) InferenceResult {
	return InferenceResult{Status: StatusGenerated, Text: text}
}

// NoContent 创建一个无内容结果。
func NoContent() InferenceResult {
	return InferenceResult{Status: StatusNoContent, Err: ErrNoContent}
}

// Failed 创建一个失败结果。
func Failed(err error) InferenceResult {
	return InferenceResult{Status: StatusFailed, Err: err}
}

// OK 报告结果是否携带可写入存储的正文。
func (r InferenceResult) OK() bool {
	return r.Status == StatusGenerated
}

// Message 返回结果的文本表示：成功时为正文，否则为对应的固定提示文本。
func (r InferenceResult) Message() string {
	switch r.Status {
	case StatusGenerated:
		return r.Text
	case StatusNoContent:
		return MessageNoContent
	default:
		return MessageInferenceError
	}
}
