package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/schema"
)

// AggregateSnapshot 全量数据快照，任务按日期键索引
type AggregateSnapshot struct {
	Moods       []schema.MoodSample
	Tasks       map[string]schema.TaskSnapshot
	Suggestions []schema.Suggestion
	Quotes      []schema.Quote
	LastUpdated time.Time // 仅供参考，不参与冲突判断
}

// PushSnapshot 客户端推送的全量数据
type PushSnapshot struct {
	Moods       []*schema.MoodSample
	Tasks       []*schema.TaskSnapshot
	Suggestions []*schema.Suggestion
	Quotes      []*schema.Quote
}

// PushResult 每类实体写入条数
type PushResult struct {
	Moods       int `json:"moodData"`
	Tasks       int `json:"taskData"`
	Suggestions int `json:"aiSuggestions"`
	Quotes      int `json:"quotes"`
}

// SyncService 在客户端缓存与服务端存储之间搬运数据
type SyncService struct {
	moods       MoodStore
	tasks       TaskStore
	suggestions SuggestionStore
	quotes      QuoteStore
	notifier    Notifier
	now         func() time.Time
}

func NewSyncService(moods MoodStore, tasks TaskStore, suggestions SuggestionStore, quotes QuoteStore, notifier Notifier) *SyncService {
	return &SyncService{
		moods:       moods,
		tasks:       tasks,
		suggestions: suggestions,
		quotes:      quotes,
		notifier:    notifier,
		now:         time.Now,
	}
}

// PullAll 读取四个存储的全部数据
func (s *SyncService) PullAll(ctx context.Context) (*AggregateSnapshot, error) {
	moods, err := s.moods.List(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	suggestions, err := s.suggestions.List(ctx)
	if err != nil {
		return nil, err
	}
	quotes, err := s.quotes.List(ctx)
	if err != nil {
		return nil, err
	}

	snap := &AggregateSnapshot{
		Moods:       moods,
		Tasks:       make(map[string]schema.TaskSnapshot, len(tasks)),
		Suggestions: suggestions,
		Quotes:      quotes,
	}
	for _, t := range tasks {
		snap.Tasks[t.Date] = t
	}

	latest, err := s.lastUpdated(ctx)
	if err != nil {
		return nil, err
	}
	snap.LastUpdated = latest
	return snap, nil
}

func (s *SyncService) lastUpdated(ctx context.Context) (time.Time, error) {
	var latest time.Time
	for _, fn := range []func(context.Context) (time.Time, bool, error){
		s.moods.LastUpdated,
		s.tasks.LastUpdated,
		s.suggestions.LastUpdated,
		s.quotes.LastUpdated,
	} {
		ts, ok, err := fn(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if ok && ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		latest = s.now()
	}
	return latest, nil
}

// PushAll 先校验整个快照，任一条不合法则什么都不写；
// 之后按 mood → task → suggestion → quote 顺序，每类实体一个事务。
func (s *SyncService) PushAll(ctx context.Context, snap *PushSnapshot) (*PushResult, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: 数据不能为空", ErrValidation)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	if err := s.moods.BulkUpsert(ctx, snap.Moods); err != nil {
		return nil, err
	}
	if err := s.tasks.BulkUpsert(ctx, snap.Tasks); err != nil {
		return nil, err
	}
	if err := s.suggestions.BulkInsert(ctx, snap.Suggestions); err != nil {
		return nil, err
	}
	if err := s.quotes.BulkInsert(ctx, snap.Quotes); err != nil {
		return nil, err
	}

	res := &PushResult{
		Moods:       len(snap.Moods),
		Tasks:       len(snap.Tasks),
		Suggestions: len(snap.Suggestions),
		Quotes:      len(snap.Quotes),
	}
	slog.Info("全量数据已同步", "mood", res.Moods, "task", res.Tasks, "suggestion", res.Suggestions, "quote", res.Quotes)
	s.changed("all")
	return res, nil
}

func validateSnapshot(snap *PushSnapshot) error {
	for i, m := range snap.Moods {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("moodData[%d]: %w", i, err)
		}
	}
	for i, t := range snap.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("taskData[%d]: %w", i, err)
		}
	}
	for i, sg := range snap.Suggestions {
		if err := sg.Validate(); err != nil {
			return fmt.Errorf("aiSuggestions[%d]: %w", i, err)
		}
	}
	for i, q := range snap.Quotes {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("quotes[%d]: %w", i, err)
		}
	}
	return nil
}

func (s *SyncService) PushMood(ctx context.Context, m *schema.MoodSample) error {
	if err := s.moods.Upsert(ctx, m); err != nil {
		return err
	}
	s.changed("mood")
	return nil
}

func (s *SyncService) PushTask(ctx context.Context, t *schema.TaskSnapshot) error {
	if err := s.tasks.Upsert(ctx, t); err != nil {
		return err
	}
	s.changed("task")
	return nil
}

func (s *SyncService) PushSuggestion(ctx context.Context, sg *schema.Suggestion) error {
	if err := s.suggestions.Create(ctx, sg); err != nil {
		return err
	}
	s.changed("suggestion")
	return nil
}

func (s *SyncService) PushQuote(ctx context.Context, q *schema.Quote) error {
	if err := s.quotes.Create(ctx, q); err != nil {
		return err
	}
	s.changed("quote")
	return nil
}

func (s *SyncService) changed(entity string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(eventbus.Event{
		Type: eventbus.TypeRecordsChanged,
		Data: map[string]any{"entity": entity},
	})
}
