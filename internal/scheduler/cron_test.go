package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/oriys/blogsmith/internal/config"
	"github.com/oriys/blogsmith/internal/domain"
	"github.com/sirupsen/logrus"
)

// mockDispatcher 记录收到的请求。
type mockDispatcher struct {
	mu          sync.Mutex
	bodies      []string
	triggers    []domain.TriggerType
	hasDeadline bool
}

func (m *mockDispatcher) Dispatch(ctx context.Context, body []byte, trigger domain.TriggerType) domain.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies = append(m.bodies, string(body))
	m.triggers = append(m.triggers, trigger)
	_, m.hasDeadline = ctx.Deadline()
	return domain.Success()
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSyntheticBody(t *testing.T) {
	body, err := SyntheticBody("cats")
	if err != nil {
		t.Fatalf("SyntheticBody() error: %v", err)
	}
	if string(body) != `{"blog_topic":"cats"}` {
		t.Errorf("SyntheticBody() = %s", body)
	}
}

func TestCronManager_Start(t *testing.T) {
	cm := NewCronManager(&mockDispatcher{}, time.Minute, testLogger())
	err := cm.Start([]config.ScheduleEntry{
		{Cron: "0 0 9 * * *", Topic: "morning"},
		{Cron: "0 30 18 * * MON-FRI", Topic: "evening"},
	})
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer cm.Stop(context.Background())

	entries := cm.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Next.IsZero() {
			t.Errorf("entry %s has no next run time", e.Name)
		}
	}
}

func TestCronManager_StartInvalid(t *testing.T) {
	cm := NewCronManager(&mockDispatcher{}, 0, testLogger())
	err := cm.Start([]config.ScheduleEntry{
		{Cron: "0 0 9 * * *", Topic: "ok"},
		{Cron: "every morning", Topic: "bad"},
	})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("Start() = %v, want ErrInvalidConfig", err)
	}
	// 启动失败时不保留部分注册的任务
	if n := len(cm.Entries()); n != 0 {
		t.Errorf("Entries() = %d, want 0", n)
	}
}

func TestCronManager_AddRemove(t *testing.T) {
	cm := NewCronManager(&mockDispatcher{}, 0, testLogger())

	if err := cm.Add("daily", config.ScheduleEntry{Cron: "0 0 9 * * *", Topic: "a"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	// 替换同名任务
	if err := cm.Add("daily", config.ScheduleEntry{Cron: "0 0 10 * * *", Topic: "b"}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	entries := cm.Entries()
	if len(entries) != 1 || entries[0].Topic != "b" {
		t.Errorf("Entries() = %+v", entries)
	}

	cm.Remove("daily")
	if n := len(cm.Entries()); n != 0 {
		t.Errorf("Entries() after Remove = %d", n)
	}
}

func TestCronManager_Fire(t *testing.T) {
	d := &mockDispatcher{}
	cm := NewCronManager(d, time.Minute, testLogger())

	cm.fire("manual", config.ScheduleEntry{Cron: "@daily", Topic: "dogs"})

	if len(d.bodies) != 1 || d.bodies[0] != `{"blog_topic":"dogs"}` {
		t.Errorf("bodies = %v", d.bodies)
	}
	if d.triggers[0] != domain.TriggerCron {
		t.Errorf("trigger = %q", d.triggers[0])
	}
	if !d.hasDeadline {
		t.Error("scheduled dispatch should carry a deadline")
	}
}
