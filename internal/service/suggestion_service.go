package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindbloom/mindbloom/internal/ai"
	"github.com/mindbloom/mindbloom/internal/schema"
)

// 流水线状态
const (
	StateIdle        = "idle"
	StateAggregating = "aggregating"
	StateGenerating  = "generating"
	StatePersisting  = "persisting"
)

const (
	kindSuggestion = "suggestion"
	kindQuote      = "quote"

	// StatsWindow 参与统计的最近记录条数
	StatsWindow = 7
)

// Source 生成结果来源
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

type SuggestionResult struct {
	RunID      string
	Suggestion *schema.Suggestion
	Source     Source
}

type QuoteResult struct {
	RunID  string
	Quote  *schema.Quote
	Source Source
}

type SuggestionConfig struct {
	Temperature float64
	MaxTokens   int
	// Attempts 外部生成总尝试次数，只对 5xx 与网络错误重试
	Attempts   int
	RetryDelay time.Duration
}

// SuggestionService 统计 → 生成 → 落库；外部生成失败时走规则降级
type SuggestionService struct {
	moods       MoodStore
	tasks       TaskStore
	suggestions SuggestionStore
	quotes      QuoteStore
	gen         ai.Generator
	notifier    Notifier
	cfg         SuggestionConfig
	now         func() time.Time
}

func NewSuggestionService(
	moods MoodStore,
	tasks TaskStore,
	suggestions SuggestionStore,
	quotes QuoteStore,
	gen ai.Generator,
	notifier Notifier,
	cfg SuggestionConfig,
) *SuggestionService {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &SuggestionService{
		moods:       moods,
		tasks:       tasks,
		suggestions: suggestions,
		quotes:      quotes,
		gen:         gen,
		notifier:    notifier,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Aggregate 取最近 7 条情绪与 7 条任务计算均值；无数据时均值为 0
func (s *SuggestionService) Aggregate(ctx context.Context) (*schema.Stats, error) {
	moods, err := s.moods.Recent(ctx, StatsWindow)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.Recent(ctx, StatsWindow)
	if err != nil {
		return nil, err
	}

	stats := &schema.Stats{DaysTracked: len(moods)}
	if len(moods) > 0 {
		var anxiety, joy int
		for _, m := range moods {
			anxiety += m.Anxiety
			joy += m.Joy
		}
		stats.AvgAnxiety = float64(anxiety) / float64(len(moods))
		stats.AvgJoy = float64(joy) / float64(len(moods))
	}
	if len(tasks) > 0 {
		var rate int
		for _, t := range tasks {
			rate += t.CompletionRate
		}
		stats.AvgCompletionRate = float64(rate) / float64(len(tasks))
	}
	return stats, nil
}

// GenerateSuggestion 执行一次建议流水线
func (s *SuggestionService) GenerateSuggestion(ctx context.Context) (*SuggestionResult, error) {
	runID := uuid.NewString()
	defer s.publish(runID, kindSuggestion, StateIdle, nil)

	s.publish(runID, kindSuggestion, StateAggregating, nil)
	stats, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	s.publish(runID, kindSuggestion, StateGenerating, nil)
	content, source := orElse(
		s.tryExternal(ctx, BuildSuggestionPrompt(*stats, s.cfg.Temperature, s.cfg.MaxTokens)),
		func() string { return FallbackSuggestion(*stats) },
	)

	s.publish(runID, kindSuggestion, StatePersisting, map[string]any{"source": string(source)})
	sug := &schema.Suggestion{
		Title:   schema.SuggestionTitle,
		Content: content,
		Date:    s.now().UTC(),
		Metrics: stats,
	}
	if err := s.suggestions.Create(ctx, sug); err != nil {
		return nil, err
	}

	slog.Info("学习建议已生成", "run_id", runID, "source", source, "days_tracked", stats.DaysTracked, "preview", preview(content))
	return &SuggestionResult{RunID: runID, Suggestion: sug, Source: source}, nil
}

// GenerateQuote 执行一次寄语流水线，失败时从静态池按日取
func (s *SuggestionService) GenerateQuote(ctx context.Context) (*QuoteResult, error) {
	runID := uuid.NewString()
	defer s.publish(runID, kindQuote, StateIdle, nil)

	s.publish(runID, kindQuote, StateAggregating, nil)
	stats, err := s.Aggregate(ctx)
	if err != nil {
		return nil, err
	}

	s.publish(runID, kindQuote, StateGenerating, nil)
	now := s.now()
	text, source := orElse(
		s.tryExternal(ctx, BuildQuotePrompt(*stats, s.cfg.Temperature)),
		func() string { return PoolQuote(now.YearDay()) },
	)
	text = strings.Trim(text, "\"“”「」 \n")

	s.publish(runID, kindQuote, StatePersisting, map[string]any{"source": string(source)})
	q := &schema.Quote{Text: text, Date: now.UTC(), IsGenerated: source == SourceAI}
	if err := s.quotes.Create(ctx, q); err != nil {
		return nil, err
	}

	slog.Info("每日寄语已生成", "run_id", runID, "source", source, "preview", preview(text))
	return &QuoteResult{RunID: runID, Quote: q, Source: source}, nil
}

// RunDaily 定时任务入口：先建议后寄语，错误只记日志
func (s *SuggestionService) RunDaily(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("每日生成任务 panic", "panic", r)
		}
	}()

	slog.Info("开始执行每日生成任务")
	var errs []error
	if _, err := s.GenerateSuggestion(ctx); err != nil {
		slog.Error("每日学习建议生成失败", "error", err)
		errs = append(errs, err)
	}
	if _, err := s.GenerateQuote(ctx); err != nil {
		slog.Error("每日寄语生成失败", "error", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		slog.Info("每日生成任务完成")
	}
	return errors.Join(errs...)
}

type external struct {
	text string
	err  error
}

// tryExternal 调用外部生成，未配置也视为失败
func (s *SuggestionService) tryExternal(ctx context.Context, p ai.Prompt) external {
	if s.gen == nil || !s.gen.IsConfigured() {
		return external{err: ai.ErrNotConfigured}
	}
	text, err := ai.GenerateWithRetry(ctx, s.gen, p, s.cfg.Attempts, s.cfg.RetryDelay)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("生成内容为空")
	}
	return external{text: strings.TrimSpace(text), err: err}
}

// orElse 外部结果失败时使用规则结果
func orElse(ext external, fallback func() string) (string, Source) {
	if ext.err != nil {
		if !errors.Is(ext.err, ai.ErrNotConfigured) {
			slog.Warn("外部生成失败，使用规则降级", "error", ext.err)
		}
		return fallback(), SourceFallback
	}
	return ext.text, SourceAI
}

func (s *SuggestionService) publish(runID, kind, state string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishPipelineState(runID, kind, state, extra)
}
