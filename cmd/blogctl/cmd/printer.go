package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
	"github.com/oriys/blogsmith/internal/gatewayclient"
	"github.com/oriys/blogsmith/internal/scheduler"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Printer 是格式化输出的处理器。
// 根据配置的输出格式（table/json/yaml）将数据格式化后输出到指定的 writer。
type Printer struct {
	format string    // 输出格式：table、json 或 yaml
	writer io.Writer // 输出目标
}

// NewPrinter 创建一个输出到 w 的 Printer。
// 从 viper 配置中读取 output 格式，如果未配置则默认使用 table 格式。
func NewPrinter(w io.Writer) *Printer {
	format := viper.GetString("output")
	if format == "" {
		format = "table"
	}
	return &Printer{
		format: format,
		writer: w,
	}
}

// PrintGenerateResult 打印生成结果。
func (p *Printer) PrintGenerateResult(r *gatewayclient.GenerateResult) error {
	switch p.format {
	case "json":
		return p.printJSON(r)
	case "yaml":
		return p.printYAML(r)
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tMESSAGE\tDURATION")
	fmt.Fprintf(w, "%d\t%s\t%s\n", r.StatusCode, r.Message, formatDuration(r.DurationMs))
	return w.Flush()
}

// promptView 是提示词预览的输出结构。
type promptView struct {
	ModelID string                  `json:"model_id" yaml:"model_id"`
	Payload domain.InferencePayload `json:"payload" yaml:"payload"`
}

// PrintPrompt 打印模型请求预览。
func (p *Printer) PrintPrompt(modelID string, payload domain.InferencePayload) error {
	view := promptView{ModelID: modelID, Payload: payload}
	switch p.format {
	case "json":
		return p.printJSON(view)
	case "yaml":
		return p.printYAML(view)
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Model:\t%s\n", modelID)
	fmt.Fprintf(w, "Max gen len:\t%d\n", payload.MaxGenLen)
	fmt.Fprintf(w, "Temperature:\t%g\n", payload.Temperature)
	fmt.Fprintf(w, "Top P:\t%g\n", payload.TopP)
	fmt.Fprintf(w, "Prompt:\t%s\n", payload.Prompt)
	return w.Flush()
}

// PrintSchedule 打印定时任务列表。
func (p *Printer) PrintSchedule(entries []scheduler.ScheduledEntry) error {
	switch p.format {
	case "json":
		return p.printJSON(entries)
	case "yaml":
		return p.printYAML(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(p.writer, "No scheduled entries")
		return nil
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCRON\tTOPIC\tNEXT RUN")
	for _, e := range entries {
		next := "-"
		if !e.Next.IsZero() {
			next = e.Next.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Cron, e.Topic, next)
	}
	return w.Flush()
}

// PrintEnqueued 打印已投递的事件 ID。
func (p *Printer) PrintEnqueued(subject, eventID string) error {
	v := map[string]string{"subject": subject, "event_id": eventID}
	switch p.format {
	case "json":
		return p.printJSON(v)
	case "yaml":
		return p.printYAML(v)
	}
	fmt.Fprintf(p.writer, "Enqueued %s on %s\n", eventID, subject)
	return nil
}

// PrintFields 按 keys 的顺序打印键值对。
func (p *Printer) PrintFields(keys []string, v map[string]string) error {
	switch p.format {
	case "json":
		return p.printJSON(v)
	case "yaml":
		return p.printYAML(v)
	}

	w := tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, v[k])
	}
	return w.Flush()
}

func (p *Printer) printJSON(v interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) printYAML(v interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(v)
}

// formatDuration 把毫秒格式化为便于阅读的时长。
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}
