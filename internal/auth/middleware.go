package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oriys/blogsmith/internal/config"
	"github.com/sirupsen/logrus"
)

type contextKey string

// PrincipalContextKey 是请求上下文中存放调用方信息的键
const PrincipalContextKey contextKey = "principal"

// 认证方式
const (
	MethodAPIKey = "apikey"
	MethodJWT    = "jwt"
)

// Principal 是通过认证的调用方。
type Principal struct {
	// Subject 调用方标识：JWT 的 sub，或 API Key 哈希前缀
	Subject string
	// Method 认证方式
	Method string
}

// APIKeyValidator 校验 API Key。
type APIKeyValidator interface {
	ValidateAPIKey(key string) (*Principal, error)
}

// TokenValidator 校验 Bearer 令牌。
type TokenValidator interface {
	Validate(token string) (*Principal, error)
}

// Middleware 是认证中间件。
type Middleware struct {
	apiKeyHeader string
	keys         APIKeyValidator
	tokens       TokenValidator
	logger       *logrus.Logger
}

// NewMiddleware 创建认证中间件，keys 或 tokens 为 nil 时对应方式不可用。
func NewMiddleware(apiKeyHeader string, keys APIKeyValidator, tokens TokenValidator, logger *logrus.Logger) *Middleware {
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	return &Middleware{
		apiKeyHeader: apiKeyHeader,
		keys:         keys,
		tokens:       tokens,
		logger:       logger,
	}
}

// Authenticate 先尝试 API Key，再尝试 Bearer 令牌，都失败时返回 401。
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := m.authenticate(r); p != nil {
			ctx := context.WithValue(r.Context(), PrincipalContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if m.logger != nil {
			m.logger.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"path":       r.URL.Path,
				"remote":     r.RemoteAddr,
			}).Warn("Unauthorized request")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":      "unauthorized",
			"request_id": middleware.GetReqID(r.Context()),
		})
	})
}

func (m *Middleware) authenticate(r *http.Request) *Principal {
	if key := r.Header.Get(m.apiKeyHeader); key != "" && m.keys != nil {
		if p, err := m.keys.ValidateAPIKey(key); err == nil {
			return p
		}
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && m.tokens != nil {
		if p, err := m.tokens.Validate(strings.TrimSpace(token)); err == nil {
			return p
		}
	}
	return nil
}

// GetPrincipal 从上下文中取出调用方，未认证时返回 nil。
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*Principal); ok {
		return p
	}
	return nil
}

// FromConfig 按网关配置创建中间件，未启用认证时返回 nil。
func FromConfig(cfg config.AuthConfig, logger *logrus.Logger) *Middleware {
	if !cfg.Enabled {
		return nil
	}
	var keys APIKeyValidator
	if ks := NewKeySet(cfg.APIKeyHashes); ks.Len() > 0 {
		keys = ks
	}
	var tokens TokenValidator
	if cfg.JWTSecret != "" {
		tokens = NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	}
	return NewMiddleware(cfg.APIKeyHeader, keys, tokens, logger)
}
