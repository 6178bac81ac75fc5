package inference

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
)

// 提示词模板标记，主题原样嵌入两者之间。
const (
	PromptPrefix = "<|begin_of_text|>Assistant: Write a 200 words blog post about "
	PromptSuffix = " <|end_of_text|>"
)

// BuildPrompt 构造固定模板的提示词，不对主题做任何校验或转义。
func BuildPrompt(topic domain.Topic) string {
	return PromptPrefix + topic.String() + PromptSuffix
}

// NewPayload 按推理配置构造模型请求体。
func NewPayload(cfg config.InferenceConfig, topic domain.Topic) domain.InferencePayload {
	return domain.InferencePayload{
		Prompt:      BuildPrompt(topic),
		MaxGenLen:   cfg.MaxGenLen,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	}
}

// modelResponse 是模型响应体中关心的字段。
// 除 generation 外的字段只用于日志，不约束类型，取值异常也不影响正文。
type modelResponse struct {
	Generation           *string `json:"generation"`
	PromptTokenCount     any     `json:"prompt_token_count"`
	GenerationTokenCount any     `json:"generation_token_count"`
	StopReason           any     `json:"stop_reason"`
}

// ParseGeneration 解析模型响应体并返回推理结果。
//
// 结果映射：
//   - generation 为非空字符串: StatusGenerated，Text 为该字符串
//   - generation 缺失、为 null 或为空字符串: StatusNoContent
//   - 响应体不是 JSON 对象或 generation 不是字符串: StatusFailed（ErrInvalidResponse）
func ParseGeneration(body []byte) domain.InferenceResult {
	_, result := parseResponse(body)
	return result
}

func parseResponse(body []byte) (modelResponse, domain.InferenceResult) {
	var resp modelResponse
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return resp, domain.Failed(fmt.Errorf("%w: response body is not a JSON object", domain.ErrInvalidResponse))
	}
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return resp, domain.Failed(fmt.Errorf("%w: %v", domain.ErrInvalidResponse, err))
	}
	if resp.Generation == nil || *resp.Generation == "" {
		return resp, domain.NoContent()
	}
	return resp, domain.Generated(*resp.Generation)
}
