// Package domain 定义了博客生成函数的核心领域模型。
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AbsentTopic 是请求中缺少 blog_topic 时写入提示词的占位文本。
const AbsentTopic = "None"

// Topic 表示博客主题。
// 区分"未提供"与"空字符串"两种情况：两者都不做校验，但渲染结果不同。
type Topic struct {
	// Value 是主题文本
	Value string
	// Present 表示请求中是否出现了该字段（null 视为未出现）
	Present bool
}

// NewTopic 创建一个已提供的主题。
func NewTopic(value string) Topic {
	return Topic{Value: value, Present: true}
}

// String 返回写入提示词的主题文本，未提供时返回 AbsentTopic。
func (t Topic) String() string {
	if !t.Present {
		return AbsentTopic
	}
	return t.Value
}

// BlogRequest 表示一次博客生成请求。
// 对应入站事件的 JSON 请求体 {"blog_topic": <string>}。
type BlogRequest struct {
	Topic Topic
}

// blogRequestBody 是请求体的线上格式。
type blogRequestBody struct {
	BlogTopic *string `json:"blog_topic"`
}

// ParseBlogRequest 解析入站请求体。
// blog_topic 缺失或为 null 时返回未提供的主题；主题不做校验，
// 非字符串的值（数字、布尔、对象等）按其紧凑 JSON 文本原样使用。
// 请求体不是合法 JSON 对象时返回 ErrInvalidRequestBody。
func ParseBlogRequest(body []byte) (*BlogRequest, error) {
	var raw struct {
		BlogTopic json.RawMessage `json:"blog_topic"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequestBody, err)
	}

	req := &BlogRequest{}
	topic := bytes.TrimSpace(raw.BlogTopic)
	if len(topic) == 0 || string(topic) == "null" {
		return req, nil
	}

	var s string
	if err := json.Unmarshal(topic, &s); err == nil {
		req.Topic = NewTopic(s)
		return req, nil
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, topic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequestBody, err)
	}
	req.Topic = NewTopic(compact.String())
	return req, nil
}

// MarshalJSON 将请求编码回线上格式，未提供的主题编码为 null。
func (r BlogRequest) MarshalJSON() ([]byte, error) {
	body := blogRequestBody{}
	if r.Topic.Present {
		v := r.Topic.Value
		body.BlogTopic = &v
	}
	return json.Marshal(body)
}

// InferencePayload 是发送给文本生成模型的请求体。
// 字段名与托管模型的 JSON 协议保持一致。
type InferencePayload struct {
	// Prompt 是完整的提示词
	Prompt string `json:"prompt" yaml:"prompt"`
	// MaxGenLen 是生成长度上限（token 数）
	MaxGenLen int `json:"max_gen_len" yaml:"max_gen_len"`
	// Temperature 是采样温度
	Temperature float64 `json:"temperature" yaml:"temperature"`
	// TopP 是核采样阈值
	TopP float64 `json:"top_p" yaml:"top_p"`
}

// ArtifactKeyLayout 是存储键中时间戳的格式（YYYYMMDD_HH:MM:SS）。
const ArtifactKeyLayout = "20060102_15:04:05"

// Artifact 表示持久化到对象存储中的博客文章。
type Artifact struct {
	// Key 是对象存储键，如 blog_posts/20240501_13:45:10.txt
	Key string
	// Content 是文章正文
	Content string
	// Topic 是生成该文章所用的主题
	Topic Topic
	// CreatedAt 是派生存储键所用的时间
	CreatedAt time.Time
}

// ArtifactKey 根据前缀和时间派生存储键。
//
// 参数：
//   - prefix: 键前缀，如 "blog_posts"
//   - t: 时间戳（使用其自身时区，不做转换）
//
// 返回值：
//   - string: 形如 "<prefix>/<YYYYMMDD_HH:MM:SS>.txt" 的键
func ArtifactKey(prefix string, t time.Time) string {
	return fmt.Sprintf("%s/%s.txt", prefix, t.Format(ArtifactKeyLayout))
}

// NewArtifact 创建一篇待写入的文章，存储键由 prefix 和 now 派生。
func NewArtifact(prefix string, content string, topic Topic, now time.Time) *Artifact {
	return &Artifact{
		Key:       ArtifactKey(prefix, now),
		Content:   content,
		Topic:     topic,
		CreatedAt: now,
	}
}

// Size 返回正文的字节数。
func (a *Artifact) Size() int {
	return len(a.Content)
}
