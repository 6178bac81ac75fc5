package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken 表示令牌无效、签名错误或已过期
	ErrInvalidToken = errors.New("invalid token")
	// ErrNoSecret 表示未配置签名密钥
	ErrNoSecret = errors.New("jwt secret not configured")
)

// Issuer 是签发令牌时写入 iss 的值。
const Issuer = "blogsmith"

// Claims 是网关令牌中的声明。
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager 负责 HS256 令牌的签发与验证。
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager 创建令牌管理器。
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue 为 subject 签发令牌。
func (m *TokenManager) Issue(subject string) (string, error) {
	if len(m.secret) == 0 {
		return "", ErrNoSecret
	}
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate 验证令牌并返回对应的调用方。
// 只接受 HS256 签名且 iss 为 Issuer 的令牌。
func (m *TokenManager) Validate(tokenStr string) (*Principal, error) {
	if len(m.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return &Principal{Subject: claims.Subject, Method: MethodJWT}, nil
}
