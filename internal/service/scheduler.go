package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/robfig/cron/v3"
)

// DailyRunner 每日任务
type DailyRunner interface {
	RunDaily(ctx context.Context) error
}

// Scheduler 按 schedule.time 每日触发一次生成，可在运行时改期
type Scheduler struct {
	runner DailyRunner
	cron   *cron.Cron

	mu      sync.Mutex
	entry   cron.EntryID
	spec    string
	timeStr string
	running bool
}

func NewScheduler(runner DailyRunner) *Scheduler {
	return &Scheduler{
		runner: runner,
		cron:   cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
	}
}

// Reschedule 替换当前调度；time 非法时保持原调度不变
func (s *Scheduler) Reschedule(sc config.ScheduleConfig) error {
	if _, _, err := config.ParseScheduleTime(sc.Time); err != nil {
		return err
	}
	spec := sc.CronSpec()

	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.spec && s.entry != 0 {
		return nil
	}
	id, err := s.cron.AddFunc(spec, s.fire)
	if err != nil {
		return fmt.Errorf("注册定时任务失败: %w", err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry, s.spec, s.timeStr = id, spec, sc.Time
	slog.Info("定时任务已设置", "time", sc.Time, "cron", spec)
	return nil
}

func (s *Scheduler) fire() {
	slog.Info("触发每日定时任务")
	// 定时任务不绑定任何请求，使用独立 context
	if err := s.runner.RunDaily(context.Background()); err != nil {
		slog.Error("每日定时任务失败", "error", err)
	}
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
}

// Stop 停止调度，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	slog.Info("定时任务已停止")
}

// Current 当前调度的时间与 cron 表达式
func (s *Scheduler) Current() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeStr, s.spec
}
