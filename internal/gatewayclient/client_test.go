package gatewayclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
)

func TestClient_Generate(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`"Blog post generated and saved successfully"`))
	}))
	defer server.Close()

	c := New(server.URL+"/", WithRoutePath("/posts"), WithTimeout(time.Second))
	result, err := c.Generate(context.Background(), &domain.BlogRequest{Topic: domain.NewTopic("cats")})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if gotPath != "/posts" || gotBody != `{"blog_topic":"cats"}` {
		t.Errorf("request = %s %s", gotPath, gotBody)
	}
	if !result.OK() || result.Message != domain.MessageSaved {
		t.Errorf("result = %+v", result)
	}
}

// TestClient_GenerateFunctionError 测试函数的 500 响应以结果而非错误返回。
func TestClient_GenerateFunctionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`"Error saving blog post"`))
	}))
	defer server.Close()

	result, err := New(server.URL).Generate(context.Background(), &domain.BlogRequest{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.OK() || result.StatusCode != 500 || result.Message != domain.MessageSaveFailed {
		t.Errorf("result = %+v", result)
	}
}

func TestClient_GenerateGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream unavailable`))
	}))
	defer server.Close()

	_, err := New(server.URL).Generate(context.Background(), &domain.BlogRequest{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Generate() error = %v, want *APIError", err)
	}
	if apiErr.Code != http.StatusBadGateway || apiErr.Message != "upstream unavailable" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	if err := New(server.URL).Health(context.Background()); err != nil {
		t.Errorf("Health() error: %v", err)
	}
	if _, err := New(server.URL + "/missing").Schedule(context.Background()); err == nil {
		t.Error("Schedule() should fail on 404")
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	var gotCustom, gotDefault string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCustom = r.Header.Get("X-Blog-Key")
		gotDefault = r.Header.Get("X-API-Key")
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	c := New(server.URL, WithAPIKey("bs_key"), WithAPIKeyHeader("X-Blog-Key"))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if gotCustom != "bs_key" || gotDefault != "" {
		t.Errorf("X-Blog-Key = %q, X-API-Key = %q", gotCustom, gotDefault)
	}
}

func TestClient_Credentials(t *testing.T) {
	var gotKey, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer server.Close()

	c := New(server.URL, WithAPIKey("bs_key"), WithToken("tok"))
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if gotKey != "bs_key" || gotAuth != "Bearer tok" {
		t.Errorf("headers = %q %q", gotKey, gotAuth)
	}
}
