package cmd

import (
	"github.com/oriys/blogsmith/internal/gatewayclient"
	"github.com/spf13/viper"
)

// NewClient 按 viper 配置创建网关客户端。
// 读取 api_url、route_path、timeout（如 BLOGSMITH_TIMEOUT=10m）以及认证相关的 api_key、api_key_header 和 token。
func NewClient(opts ...gatewayclient.Option) *gatewayclient.Client {
	opts = append([]gatewayclient.Option{
		gatewayclient.WithRoutePath(viper.GetString("route_path")),
		gatewayclient.WithTimeout(viper.GetDuration("timeout")),
		gatewayclient.WithAPIKey(viper.GetString("api_key")),
		gatewayclient.WithAPIKeyHeader(viper.GetString("api_key_header")),
		gatewayclient.WithToken(viper.GetString("token")),
	}, opts...)
	return gatewayclient.New(viper.GetString("api_url"), opts...)
}
