package dispatcher

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

// mockGenerator 记录收到的主题并返回预设结果。
type mockGenerator struct {
	mu     sync.Mutex
	topics []domain.Topic
	result domain.InferenceResult
}

func (m *mockGenerator) Generate(ctx context.Context, topic domain.Topic) domain.InferenceResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return m.result
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics)
}

// mockWriter 是内存存储。
type mockWriter struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func newMockWriter() *mockWriter {
	return &mockWriter{objects: make(map[string]string)}
}

func (m *mockWriter) Write(ctx context.Context, artifact *domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.objects[artifact.Key] = artifact.Content
	return nil
}

// mockNotifier 记录收到的通知。
type mockNotifier struct {
	keys []string
	err  error
}

func (m *mockNotifier) ArtifactSaved(ctx context.Context, artifact *domain.Artifact) error {
	m.keys = append(m.keys, artifact.Key)
	return m.err
}

var keyPattern = regexp.MustCompile(`^blog_posts/\d{8}_\d{2}:\d{2}:\d{2}\.txt$`)

const successBody = `"Blog post generated and saved successfully"`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestDispatcher(gen Generator, w ArtifactWriter, policy string) *Dispatcher {
	return New(gen, w, Options{KeyPrefix: "blog_posts", StoragePolicy: policy}, nil, testLogger())
}

func TestDispatch_Success(t *testing.T) {
	gen := &mockGenerator{result: domain.Generated("Cats are wonderful companions.")}
	w := newMockWriter()
	d := newTestDispatcher(gen, w, config.StoragePolicyBestEffort)

	resp := d.Dispatch(context.Background(), []byte(`{"blog_topic": "cats"}`), domain.TriggerHTTP)
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d", resp.StatusCode)
	}
	if resp.Body() != successBody {
		t.Errorf("Body() = %s", resp.Body())
	}

	if len(gen.topics) != 1 || gen.topics[0].String() != "cats" {
		t.Errorf("topics = %+v", gen.topics)
	}
	if len(w.objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(w.objects))
	}
	for key, content := range w.objects {
		if !keyPattern.MatchString(key) {
			t.Errorf("key %q does not match %s", key, keyPattern)
		}
		if content != "Cats are wonderful companions." {
			t.Errorf("content = %q", content)
		}
	}
}

func TestDispatch_KeyFromClock(t *testing.T) {
	gen := &mockGenerator{result: domain.Generated("text")}
	w := newMockWriter()
	now := time.Date(2024, 5, 1, 13, 45, 10, 0, time.UTC)
	d := New(gen, w, Options{KeyPrefix: "blog_posts", Now: func() time.Time { return now }}, nil, testLogger())

	d.Dispatch(context.Background(), []byte(`{"blog_topic":"x"}`), domain.TriggerHTTP)

	if got := w.objects["blog_posts/20240501_13:45:10.txt"]; got != "text" {
		t.Errorf("objects = %+v", w.objects)
	}
}

// TestDispatch_MissingTopic 测试缺少 blog_topic 时主题渲染为 None 且不会失败。
func TestDispatch_MissingTopic(t *testing.T) {
	for _, body := range []string{`{}`, `{"blog_topic": null}`, `null`} {
		gen := &mockGenerator{result: domain.Generated("text")}
		d := newTestDispatcher(gen, newMockWriter(), config.StoragePolicyBestEffort)

		resp := d.Dispatch(context.Background(), []byte(body), domain.TriggerHTTP)
		if resp.StatusCode != 200 {
			t.Errorf("body %s: StatusCode = %d", body, resp.StatusCode)
		}
		if gen.calls() != 1 || gen.topics[0].String() != "None" {
			t.Errorf("body %s: topics = %+v", body, gen.topics)
		}
	}
}

func TestDispatch_StoragePolicy(t *testing.T) {
	tests := []struct {
		policy   string
		wantCode int
		wantMsg  string
	}{
		{config.StoragePolicyBestEffort, 200, domain.MessageSaved},
		{config.StoragePolicyStrict, 500, domain.MessageSaveFailed},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			w := newMockWriter()
			w.err = errors.New("AccessDenied")
			n := &mockNotifier{}
			d := newTestDispatcher(&mockGenerator{result: domain.Generated("text")}, w, tt.policy).WithNotifier(n)

			resp := d.Dispatch(context.Background(), []byte(`{"blog_topic":"cats"}`), domain.TriggerHTTP)
			if resp.StatusCode != tt.wantCode || resp.Message != tt.wantMsg {
				t.Errorf("resp = %+v, want %d %q", resp, tt.wantCode, tt.wantMsg)
			}
			if len(n.keys) != 0 {
				t.Error("notifier should not be called when the write fails")
			}
		})
	}
}

func TestDispatch_InferenceFailure(t *testing.T) {
	tests := []struct {
		name   string
		result domain.InferenceResult
	}{
		{"failed", domain.Failed(domain.ErrInferenceFailed)},
		{"no content", domain.NoContent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newMockWriter()
			d := newTestDispatcher(&mockGenerator{result: tt.result}, w, config.StoragePolicyBestEffort)

			resp := d.Dispatch(context.Background(), []byte(`{"blog_topic":"cats"}`), domain.TriggerHTTP)
			if resp.StatusCode != 500 {
				t.Errorf("StatusCode = %d", resp.StatusCode)
			}
			if resp.Body() != `"Error generating blog post"` {
				t.Errorf("Body() = %s", resp.Body())
			}
			// 失败或无内容时不应写入存储
			if len(w.objects) != 0 {
				t.Errorf("objects = %+v", w.objects)
			}
		})
	}
}

func TestDispatch_InvalidBody(t *testing.T) {
	for _, body := range []string{`not json`, `[1,2]`, `{"blog_topic": 42}`, ``} {
		gen := &mockGenerator{result: domain.Generated("text")}
		d := newTestDispatcher(gen, newMockWriter(), config.StoragePolicyBestEffort)

		resp := d.Dispatch(context.Background(), []byte(body), domain.TriggerHTTP)
		if resp.StatusCode != 500 {
			t.Errorf("body %q: StatusCode = %d", body, resp.StatusCode)
		}
		if gen.calls() != 0 {
			t.Errorf("body %q: generator should not be called", body)
		}
	}
}

func TestDispatch_Notifier(t *testing.T) {
	n := &mockNotifier{err: errors.New("nats unavailable")}
	d := newTestDispatcher(&mockGenerator{result: domain.Generated("text")}, newMockWriter(), config.StoragePolicyStrict).WithNotifier(n)

	// 通知失败不影响响应
	resp := d.Dispatch(context.Background(), []byte(`{"blog_topic":"cats"}`), domain.TriggerCron)
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if len(n.keys) != 1 || !keyPattern.MatchString(n.keys[0]) {
		t.Errorf("notified keys = %v", n.keys)
	}
}

// panicWriter 在写入时 panic。
type panicWriter struct{}

func (panicWriter) Write(ctx context.Context, artifact *domain.Artifact) error {
	panic("unexpected")
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := newTestDispatcher(&mockGenerator{result: domain.Generated("text")}, panicWriter{}, config.StoragePolicyBestEffort)

	resp := d.Dispatch(context.Background(), []byte(`{"blog_topic":"cats"}`), domain.TriggerHTTP)
	if resp.StatusCode != 500 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry("test", reg)
	d := New(&mockGenerator{result: domain.Generated("text")}, newMockWriter(), Options{KeyPrefix: "blog_posts"}, m, testLogger())

	d.Dispatch(context.Background(), []byte(`{"blog_topic":"cats"}`), domain.TriggerCron)
	d.Dispatch(context.Background(), []byte(`oops`), domain.TriggerHTTP)

	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("cron", "200")); got != 1 {
		t.Errorf("cron/200 = %v", got)
	}
	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("http", "500")); got != 1 {
		t.Errorf("http/500 = %v", got)
	}
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		req      events.APIGatewayProxyRequest
		wantCode int
		wantBody string
	}{
		{
			name:     "普通请求体",
			req:      events.APIGatewayProxyRequest{Body: `{"blog_topic":"cats"}`},
			wantCode: 200,
			wantBody: successBody,
		},
		{
			name: "base64 请求体",
			req: events.APIGatewayProxyRequest{
				Body:            base64.StdEncoding.EncodeToString([]byte(`{"blog_topic":"cats"}`)),
				IsBase64Encoded: true,
			},
			wantCode: 200,
			wantBody: successBody,
		},
		{
			name:     "无效 base64",
			req:      events.APIGatewayProxyRequest{Body: `{"blog_topic":"cats"}`, IsBase64Encoded: true},
			wantCode: 500,
			wantBody: `"Error generating blog post"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{result: domain.Generated("text")}
			d := newTestDispatcher(gen, newMockWriter(), config.StoragePolicyBestEffort)

			resp, err := d.Handle(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Handle() error: %v", err)
			}
			if resp.StatusCode != tt.wantCode || resp.Body != tt.wantBody {
				t.Errorf("resp = %d %s, want %d %s", resp.StatusCode, resp.Body, tt.wantCode, tt.wantBody)
			}
			if resp.Headers["Content-Type"] != "application/json" {
				t.Errorf("Content-Type = %q", resp.Headers["Content-Type"])
			}
			if tt.wantCode == 200 && gen.topics[0].String() != "cats" {
				t.Errorf("topic = %q", gen.topics[0].String())
			}
		})
	}
}

// TestHandle_Trigger 测试网关与 Lambda 入口在指标中区分触发方式。
func TestHandle_Trigger(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry("test", reg)
	d := New(&mockGenerator{result: domain.Generated("text")}, newMockWriter(),
		Options{KeyPrefix: "blog_posts", StoragePolicy: config.StoragePolicyBestEffort}, m, testLogger())

	req := events.APIGatewayProxyRequest{Body: `{"blog_topic":"cats"}`}
	if _, err := d.Handle(context.Background(), req); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if _, err := d.HandleLambda(context.Background(), req); err != nil {
		t.Fatalf("HandleLambda() error: %v", err)
	}
	if _, err := d.HandleLambda(context.Background(), events.APIGatewayProxyRequest{Body: "!!", IsBase64Encoded: true}); err != nil {
		t.Fatalf("HandleLambda() error: %v", err)
	}

	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("http", "200")); got != 1 {
		t.Errorf("http invocations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("lambda", "200")); got != 1 {
		t.Errorf("lambda invocations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("lambda", "500")); got != 1 {
		t.Errorf("lambda failures = %v, want 1", got)
	}
}

// TestDispatch_NonStringTopic 测试非字符串主题原样交给推理客户端。
func TestDispatch_NonStringTopic(t *testing.T) {
	gen := &mockGenerator{result: domain.Generated("text")}
	d := newTestDispatcher(gen, newMockWriter(), config.StoragePolicyBestEffort)

	resp := d.Dispatch(context.Background(), []byte(`{"blog_topic": 42}`), domain.TriggerHTTP)
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d", resp.StatusCode)
	}
	if gen.calls() != 1 || gen.topics[0].String() != "42" {
		t.Errorf("topics = %+v", gen.topics)
	}
}

func TestRequestID(t *testing.T) {
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-123"})
	if got := requestID(ctx); got != "req-123" {
		t.Errorf("requestID() = %q", got)
	}
	if got := requestID(context.Background()); got == "" {
		t.Error("requestID() should generate an ID outside Lambda")
	}
}
