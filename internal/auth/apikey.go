// Package auth 为博客生成网关提供请求认证。
// 支持两种凭据：请求头中的 API Key（服务端只保存哈希），
// 以及 HS256 签名的 Bearer JWT（由 blogctl token 命令签发）。
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrAPIKeyNotFound 表示 API Key 不在允许列表中
var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKeyPrefix 是本服务签发的 API Key 前缀。
const APIKeyPrefix = "bs_"

// GenerateAPIKey 生成一个新的 API Key。
// 返回原始密钥（只展示一次）和应写入配置的 SHA-256 哈希。
func GenerateAPIKey() (key string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	key = APIKeyPrefix + hex.EncodeToString(buf)
	return key, HashAPIKey(key), nil
}

// HashAPIKey 计算 API Key 的 SHA-256 哈希值（十六进制编码）。
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// KeySet 是基于静态哈希列表的 API Key 验证器。
type KeySet struct {
	hashes [][]byte
}

// NewKeySet 根据配置中的哈希列表创建验证器，空白项会被忽略。
func NewKeySet(hashes []string) *KeySet {
	ks := &KeySet{}
	for _, h := range hashes {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			ks.hashes = append(ks.hashes, []byte(h))
		}
	}
	return ks
}

// Len 返回允许的密钥数量。
func (ks *KeySet) Len() int {
	return len(ks.hashes)
}

// ValidateAPIKey 校验 API Key，比较使用常量时间。
func (ks *KeySet) ValidateAPIKey(key string) (*Principal, error) {
	got := []byte(HashAPIKey(key))
	for _, want := range ks.hashes {
		if subtle.ConstantTimeCompare(got, want) == 1 {
			return &Principal{Subject: string(want[:12]), Method: MethodAPIKey}, nil
		}
	}
	return nil, ErrAPIKeyNotFound
}
