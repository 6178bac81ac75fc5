package cmd

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/events"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [topic]",
	Short: "Publish an asynchronous generation request to NATS",
	Long: `向 NATS JetStream 发布 blog.post.requested 事件。
订阅了该 subject 的网关会异步生成文章；每条请求只处理一次，失败不重投。`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnqueue,
}

func init() {
	enqueueCmd.Flags().String("nats-url", "", "NATS 服务器地址（或 BLOGSMITH_NATS_URL）")
	enqueueCmd.Flags().String("subject", "blog.post.requested", "生成请求 subject（或 BLOGSMITH_REQUEST_SUBJECT）")
	viper.BindPFlag("nats_url", enqueueCmd.Flags().Lookup("nats-url"))
	viper.BindPFlag("request_subject", enqueueCmd.Flags().Lookup("subject"))
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	natsURL := viper.GetString("nats_url")
	if natsURL == "" {
		return errors.New("nats url is required (--nats-url or BLOGSMITH_NATS_URL)")
	}
	subject := viper.GetString("request_subject")

	req := &domain.BlogRequest{}
	if len(args) == 1 {
		req.Topic = domain.NewTopic(args[0])
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bus, err := events.NewEventBus(natsURL, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eventID, err := bus.PublishGenerationRequested(ctx, subject, req)
	if err != nil {
		return err
	}
	return NewPrinter(cmd.OutOrStdout()).PrintEnqueued(subject, eventID)
}
