package cmd

import (
	"errors"

	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/gatewayclient"
	"github.com/spf13/cobra"
)

// errGenerationFailed 表示函数返回了非 200 响应，命令以非零状态退出。
var errGenerationFailed = errors.New("blog post generation failed")

var generateCmd = &cobra.Command{
	Use:   "generate [topic]",
	Short: "Generate a blog post through the gateway",
	Long: `向网关发送生成请求，等待模型生成并写入对象存储。

省略主题时请求体中的 blog_topic 为 null，提示词中的主题为 "None"。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("route", "", "生成接口路径（默认 /blog-generation）")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req := &domain.BlogRequest{}
	if len(args) == 1 {
		req.Topic = domain.NewTopic(args[0])
	}

	route, _ := cmd.Flags().GetString("route")
	result, err := NewClient(gatewayclient.WithRoutePath(route)).Generate(cmd.Context(), req)
	if err != nil {
		return err
	}

	if err := NewPrinter(cmd.OutOrStdout()).PrintGenerateResult(result); err != nil {
		return err
	}
	if !result.OK() {
		return errGenerationFailed
	}
	return nil
}
