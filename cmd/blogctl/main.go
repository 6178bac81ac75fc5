// Package main 是 blogctl 命令行工具的入口点
// blogctl 用于调用博客生成网关、预览提示词和投递生成请求
package main

import (
	"os"

	"github.com/oriys/blogsmith/cmd/blogctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
