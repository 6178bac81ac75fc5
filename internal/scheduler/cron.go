// Package scheduler 提供定时生成文章的调度器。
// 每个定时任务在触发时构造与 HTTP 请求体相同的合成请求，交给分发器处理。
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Dispatcher 定义调度器所需的最小分发能力。
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte, trigger domain.TriggerType) domain.Response
}

// ScheduledEntry 描述一个已注册的定时任务。
type ScheduledEntry struct {
	Name  string    `json:"name"`
	Cron  string    `json:"cron"`
	Topic string    `json:"topic"`
	Next  time.Time `json:"next"`
	Prev  time.Time `json:"prev,omitempty"`
}

type entry struct {
	id   cron.EntryID
	spec config.ScheduleEntry
}

// CronManager 管理定时任务触发器
type CronManager struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *logrus.Logger
	mu         sync.Mutex
	entries    map[string]entry // name -> entry
}

// NewCronManager 创建一个新的 CronManager。
// timeout 是单次触发的最长处理时间，0 表示不限制。
func NewCronManager(dispatcher Dispatcher, timeout time.Duration, logger *logrus.Logger) *CronManager {
	cronLogger := cron.PrintfLogger(logger)
	return &CronManager{
		cron: cron.New(
			cron.WithSeconds(), // 支持秒级
			cron.WithLogger(cronLogger),
			// 上一次生成尚未结束时跳过本次触发
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger,
		entries:    make(map[string]entry),
	}
}

// Start 注册配置中的全部定时任务并启动调度器。
// 任一 cron 表达式无效时不会启动，并返回错误。
func (cm *CronManager) Start(schedule []config.ScheduleEntry) error {
	for i, spec := range schedule {
		if err := cm.Add(EntryName(i), spec); err != nil {
			cm.removeAll()
			return err
		}
	}

	cm.cron.Start()
	cm.logger.WithField("count", len(schedule)).Info("Cron manager started")
	return nil
}

// EntryName 返回第 i 个配置项的任务名称。
func EntryName(i int) string {
	return fmt.Sprintf("schedule-%d", i)
}

// Add 添加或替换一个定时任务。
func (cm *CronManager) Add(name string, spec config.ScheduleEntry) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	id, err := cm.cron.AddFunc(spec.Cron, func() { cm.fire(name, spec) })
	if err != nil {
		return fmt.Errorf("%w: invalid cron expression %q for %s: %v", domain.ErrInvalidConfig, spec.Cron, name, err)
	}

	// 新任务添加成功后再删除旧任务
	if old, ok := cm.entries[name]; ok {
		cm.cron.Remove(old.id)
	}
	cm.entries[name] = entry{id: id, spec: spec}
	return nil
}

// Remove 移除定时任务
func (cm *CronManager) Remove(name string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if e, ok := cm.entries[name]; ok {
		cm.cron.Remove(e.id)
		delete(cm.entries, name)
	}
}

func (cm *CronManager) removeAll() {
	cm.mu.Lock()
	names := make([]string, 0, len(cm.entries))
	for name := range cm.entries {
		names = append(names, name)
	}
	cm.mu.Unlock()

	for _, name := range names {
		cm.Remove(name)
	}
}

// Entries 返回已注册任务及其下一次触发时间。
func (cm *CronManager) Entries() []ScheduledEntry {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	result := make([]ScheduledEntry, 0, len(cm.entries))
	for name, e := range cm.entries {
		ce := cm.cron.Entry(e.id)
		result = append(result, ScheduledEntry{
			Name:  name,
			Cron:  e.spec.Cron,
			Topic: e.spec.Topic,
			Next:  ce.Next,
			Prev:  ce.Prev,
		})
	}
	return result
}

// fire 构造合成请求体并调用分发器。
func (cm *CronManager) fire(name string, spec config.ScheduleEntry) {
	logEntry := cm.logger.WithFields(logrus.Fields{
		"entry": name,
		"cron":  spec.Cron,
		"topic": spec.Topic,
	})
	logEntry.Info("Triggering scheduled blog post")

	body, err := SyntheticBody(spec.Topic)
	if err != nil {
		logEntry.WithError(err).Error("Failed to build scheduled request")
		return
	}

	ctx := context.Background()
	if cm.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cm.timeout)
		defer cancel()
	}

	resp := cm.dispatcher.Dispatch(ctx, body, domain.TriggerCron)
	if resp.StatusCode != 200 {
		logEntry.WithField("status_code", resp.StatusCode).Warn("Scheduled blog post failed: " + resp.Message)
	}
}

// SyntheticBody 构造与 HTTP 请求体相同格式的请求 {"blog_topic": topic}。
func SyntheticBody(topic string) ([]byte, error) {
	return json.Marshal(domain.BlogRequest{Topic: domain.NewTopic(topic)})
}

// Stop 停止 Cron 调度器，并等待正在执行的任务结束或 ctx 取消。
func (cm *CronManager) Stop(ctx context.Context) {
	done := cm.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		cm.logger.Warn("Cron manager stopped before running jobs finished")
	}
	cm.logger.Info("Cron manager stopped")
}
