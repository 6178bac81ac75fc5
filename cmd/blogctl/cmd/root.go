// Package cmd 包含 blogctl CLI 工具的所有命令实现
// 使用 cobra 框架构建命令行接口
package cmd

import (
	"fmt"
	"os"

	"github.com/oriys/blogsmith/internal/gatewayclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// 全局命令行标志变量
var (
	cfgFile   string // 配置文件路径
	apiURL    string // 网关地址
	outputFmt string // 输出格式（table/json/yaml）
	apiKey    string // 网关 API Key
	keyHeader string // 发送 API Key 的请求头
	token     string // 网关 Bearer 令牌
)

// rootCmd 是 CLI 的根命令
var rootCmd = &cobra.Command{
	Use:   "blogctl",
	Short: "Blogsmith - blog post generation CLI",
	Long: `blogctl 是博客生成函数的命令行工具。

使用示例:
  # 通过本地网关生成一篇文章
  blogctl generate "cats"

  # 预览发送给模型的提示词和参数
  blogctl prompt "cats" -o json

  # 通过 NATS 投递异步生成请求
  blogctl enqueue "cats" --nats-url nats://localhost:4222

  # 查看网关上的定时任务
  blogctl schedule

  # 为启用认证的网关签发令牌
  BLOGSMITH_JWT_SECRET=... blogctl token --subject ops`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认为 $HOME/.blogctl.yaml）")
	rootCmd.PersistentFlags().StringVarP(&apiURL, "api-url", "u", "http://localhost:8080", "网关地址")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "输出格式（table、json、yaml）")

	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "网关 API Key（或 BLOGSMITH_API_KEY）")
	rootCmd.PersistentFlags().StringVar(&keyHeader, "api-key-header", gatewayclient.DefaultAPIKeyHeader, "发送 API Key 的请求头，需与网关 auth.api_key_header 一致")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "网关 Bearer 令牌（或 BLOGSMITH_TOKEN）")

	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	viper.BindPFlag("api_key_header", rootCmd.PersistentFlags().Lookup("api-key-header"))
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig 初始化配置
// 按优先级加载配置：命令行标志 > 环境变量 > 配置文件
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".blogctl")
	}

	// 环境变量格式：BLOGSMITH_<KEY>，如 BLOGSMITH_API_URL、BLOGSMITH_NATS_URL
	viper.SetEnvPrefix("BLOGSMITH")
	viper.AutomaticEnv()

	// 配置文件不存在时忽略
	_ = viper.ReadInConfig()
}
