package cmd

import (
	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/inference"
	"github.com/spf13/cobra"
)

var promptCmd = &cobra.Command{
	Use:   "prompt [topic]",
	Short: "Render the prompt and model parameters for a topic",
	Long: `在本地渲染发送给模型的提示词和生成参数，不调用模型。

默认参数与函数的默认配置一致，可通过 --function-config 读取函数的 YAML 配置。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrompt,
}

func init() {
	promptCmd.Flags().String("function-config", "", "函数配置文件路径")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("function-config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	var topic domain.Topic
	if len(args) == 1 {
		topic = domain.NewTopic(args[0])
	}

	payload := inference.NewPayload(cfg.Inference, topic)
	return NewPrinter(cmd.OutOrStdout()).PrintPrompt(cfg.Inference.ModelID, payload)
}
