// Package domain 定义了博客生成函数的核心领域模型。
package domain

import "errors"

// 领域错误定义
// 这些错误用于在推理客户端、存储写入器和分发器之间传递失败原因。

var (
	// ========== 请求相关错误 ==========

	// ErrInvalidRequestBody 表示入站请求体无法解析为 JSON
	ErrInvalidRequestBody = errors.New("invalid request body")

	// ========== 推理相关错误 ==========

	// ErrInferenceFailed 表示推理客户端构造或模型调用失败
	ErrInferenceFailed = errors.New("inference request failed")
	// ErrInvalidResponse 表示模型返回的响应体无法解析
	ErrInvalidResponse = errors.New("invalid inference response")
	// ErrNoContent 表示调用成功但响应中没有生成内容
	ErrNoContent = errors.New("no content generated")

	// ========== 存储相关错误 ==========

	// ErrStorageWrite 表示对象存储写入失败
	ErrStorageWrite = errors.New("storage write failed")

	// ========== 配置相关错误 ==========

	// ErrInvalidConfig 表示配置项无效
	ErrInvalidConfig = errors.New("invalid configuration")
)
