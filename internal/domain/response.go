// Package domain 定义了博客生成函数的核心领域模型。
package domain

import (
	"encoding/json"
	"net/http"
)

// 分发器返回给调用方的固定消息
const (
	// MessageSaved 是生成并保存成功时的消息
	MessageSaved = "Blog post generated and saved successfully"
	// MessageGenerateFailed 是推理失败或无内容时的消息
	MessageGenerateFailed = "Error generating blog post"
	// MessageSaveFailed 是严格存储策略下写入失败时的消息
	MessageSaveFailed = "Error saving blog post"
)

// Response 表示一次调用的最终结果，只有 200 和 500 两种状态码。
type Response struct {
	// StatusCode 是 HTTP 状态码
	StatusCode int
	// Message 是返回给调用方的消息
	Message string
}

// Success 返回成功响应。
func Success() Response {
	return Response{StatusCode: http.StatusOK, Message: MessageSaved}
}

// Failure 返回带指定消息的 500 响应。
func Failure(message string) Response {
	return Response{StatusCode: http.StatusInternalServerError, Message: message}
}

// Body 返回 JSON 编码后的消息字符串，例如 "\"Blog post generated and saved successfully\""。
func (r Response) Body() string {
	data, err := json.Marshal(r.Message)
	if err != nil {
		return `""`
	}
	return string(data)
}
