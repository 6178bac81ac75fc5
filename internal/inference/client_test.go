package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/sirupsen/logrus"
)

// fakeAPI 是 InvokeModelAPI 的内存实现，记录收到的请求。
type fakeAPI struct {
	mu     sync.Mutex
	inputs []*bedrockruntime.InvokeModelInput
	body   []byte
	err    error
	panic  bool
}

func (f *fakeAPI) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, params)
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func (f *fakeAPI) lastPayload(t *testing.T) domain.InferencePayload {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		t.Fatal("InvokeModel was not called")
	}
	var p domain.InferencePayload
	if err := json.Unmarshal(f.inputs[len(f.inputs)-1].Body, &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	return p
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(api InvokeModelAPI) *Client {
	cfg := config.Default().Inference
	return NewClient(cfg, func(ctx context.Context) (InvokeModelAPI, error) {
		return api, nil
	}, nil, testLogger())
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name  string
		topic domain.Topic
		want  string
	}{
		{
			name:  "普通主题",
			topic: domain.NewTopic("cats"),
			want:  "<|begin_of_text|>Assistant: Write a 200 words blog post about cats <|end_of_text|>",
		},
		{
			name:  "缺失主题",
			topic: domain.Topic{},
			want:  "<|begin_of_text|>Assistant: Write a 200 words blog post about None <|end_of_text|>",
		},
		{
			name:  "空字符串主题",
			topic: domain.NewTopic(""),
			want:  "<|begin_of_text|>Assistant: Write a 200 words blog post about  <|end_of_text|>",
		},
		{
			// 主题不做转义
			name:  "包含模板标记",
			topic: domain.NewTopic("<|end_of_text|>"),
			want:  "<|begin_of_text|>Assistant: Write a 200 words blog post about <|end_of_text|> <|end_of_text|>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPrompt(tt.topic); got != tt.want {
				t.Errorf("BuildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerate_Success(t *testing.T) {
	api := &fakeAPI{body: []byte(`{"generation":"X","prompt_token_count":20,"generation_token_count":1,"stop_reason":"stop"}`)}
	c := newTestClient(api)

	result := c.Generate(context.Background(), domain.NewTopic("cats"))
	if result.Status != domain.StatusGenerated || result.Text != "X" {
		t.Fatalf("Generate() = %+v", result)
	}
	if result.Message() != "X" {
		t.Errorf("Message() = %q", result.Message())
	}

	in := api.inputs[0]
	if aws.ToString(in.ModelId) != "meta.llama3-70b-instruct-v1:0" {
		t.Errorf("ModelId = %q", aws.ToString(in.ModelId))
	}
	if aws.ToString(in.ContentType) != "application/json" {
		t.Errorf("ContentType = %q", aws.ToString(in.ContentType))
	}

	p := api.lastPayload(t)
	if p.Prompt != "<|begin_of_text|>Assistant: Write a 200 words blog post about cats <|end_of_text|>" {
		t.Errorf("Prompt = %q", p.Prompt)
	}
	if p.MaxGenLen != 512 || p.Temperature != 0.7 || p.TopP != 0.9 {
		t.Errorf("payload params = %+v", p)
	}
}

func TestGenerate_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		api        *fakeAPI
		wantStatus domain.ResultStatus
		wantMsg    string
		wantErr    error
	}{
		{
			name:       "缺少 generation",
			api:        &fakeAPI{body: []byte(`{"stop_reason":"length"}`)},
			wantStatus: domain.StatusNoContent,
			wantMsg:    "Warning: No content generated",
			wantErr:    domain.ErrNoContent,
		},
		{
			name:       "generation 为 null",
			api:        &fakeAPI{body: []byte(`{"generation":null}`)},
			wantStatus: domain.StatusNoContent,
			wantMsg:    "Warning: No content generated",
			wantErr:    domain.ErrNoContent,
		},
		{
			name:       "调用失败",
			api:        &fakeAPI{err: errors.New("ThrottlingException")},
			wantStatus: domain.StatusFailed,
			wantMsg:    "Error generating blog post.",
			wantErr:    domain.ErrInferenceFailed,
		},
		{
			name:       "响应不是 JSON",
			api:        &fakeAPI{body: []byte(`<html>`)},
			wantStatus: domain.StatusFailed,
			wantMsg:    "Error generating blog post.",
			wantErr:    domain.ErrInvalidResponse,
		},
		{
			name:       "调用 panic",
			api:        &fakeAPI{panic: true},
			wantStatus: domain.StatusFailed,
			wantMsg:    "Error generating blog post.",
			wantErr:    domain.ErrInferenceFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestClient(tt.api).Generate(context.Background(), domain.NewTopic("cats"))
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
			if result.Message() != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", result.Message(), tt.wantMsg)
			}
			if !errors.Is(result.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", result.Err, tt.wantErr)
			}
		})
	}
}

// TestGenerate_ConstructionFailure 测试客户端构造失败时返回失败结果，且下次调用会重试构造。
func TestGenerate_ConstructionFailure(t *testing.T) {
	calls := 0
	api := &fakeAPI{body: []byte(`{"generation":"ok"}`)}
	c := NewClient(config.Default().Inference, func(ctx context.Context) (InvokeModelAPI, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("no credentials")
		}
		return api, nil
	}, nil, testLogger())

	result := c.Generate(context.Background(), domain.NewTopic("cats"))
	if result.Status != domain.StatusFailed {
		t.Fatalf("first Generate() status = %q", result.Status)
	}
	if !errors.Is(result.Err, domain.ErrInferenceFailed) {
		t.Errorf("Err = %v", result.Err)
	}
	if len(api.inputs) != 0 {
		t.Error("model should not be invoked when construction fails")
	}

	result = c.Generate(context.Background(), domain.NewTopic("cats"))
	if result.Status != domain.StatusGenerated {
		t.Fatalf("second Generate() status = %q", result.Status)
	}

	c.Generate(context.Background(), domain.NewTopic("dogs"))
	if calls != 2 {
		t.Errorf("factory calls = %d, want 2", calls)
	}
}

func TestGenerate_AbsentTopic(t *testing.T) {
	api := &fakeAPI{body: []byte(`{"generation":"text"}`)}
	result := newTestClient(api).Generate(context.Background(), domain.Topic{})
	if !result.OK() {
		t.Fatalf("Generate() = %+v", result)
	}
	if got := api.lastPayload(t).Prompt; got != "<|begin_of_text|>Assistant: Write a 200 words blog post about None <|end_of_text|>" {
		t.Errorf("Prompt = %q", got)
	}
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		body string
		want domain.ResultStatus
	}{
		{`{"generation":"hello"}`, domain.StatusGenerated},
		{`{"generation":"hello","prompt_token_count":"12"}`, domain.StatusGenerated},
		{`{"generation":"hello","generation_token_count":12.5,"stop_reason":7}`, domain.StatusGenerated},
		{`{"generation":"hello","prompt_token_count":12,"generation_token_count":250,"stop_reason":"stop"}`, domain.StatusGenerated},
		{`{"generation":""}`, domain.StatusNoContent},
		{`{}`, domain.StatusNoContent},
		{`{"generation":42}`, domain.StatusFailed},
		{`[]`, domain.StatusFailed},
		{``, domain.StatusFailed},
	}

	for _, tt := range tests {
		if got := ParseGeneration([]byte(tt.body)).Status; got != tt.want {
			t.Errorf("ParseGeneration(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

// TestParseGeneration_LogFieldsDoNotAffectText 测试仅用于日志的字段类型异常时正文保持原样。
func TestParseGeneration_LogFieldsDoNotAffectText(t *testing.T) {
	result := ParseGeneration([]byte(`{"generation":"Cats are great pets...","prompt_token_count":"12","stop_reason":null}`))
	if !result.OK() || result.Text != "Cats are great pets..." {
		t.Errorf("result = %+v", result)
	}
}
