package service

import (
	"context"
	"time"

	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type MoodStore interface {
	Upsert(ctx context.Context, m *schema.MoodSample) error
	BulkUpsert(ctx context.Context, samples []*schema.MoodSample) error
	List(ctx context.Context) ([]schema.MoodSample, error)
	Recent(ctx context.Context, n int) ([]schema.MoodSample, error)
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

type TaskStore interface {
	Upsert(ctx context.Context, t *schema.TaskSnapshot) error
	BulkUpsert(ctx context.Context, tasks []*schema.TaskSnapshot) error
	List(ctx context.Context) ([]schema.TaskSnapshot, error)
	Recent(ctx context.Context, n int) ([]schema.TaskSnapshot, error)
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

type SuggestionStore interface {
	Create(ctx context.Context, s *schema.Suggestion) error
	BulkInsert(ctx context.Context, items []*schema.Suggestion) error
	List(ctx context.Context) ([]schema.Suggestion, error)
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

type QuoteStore interface {
	Create(ctx context.Context, q *schema.Quote) error
	BulkInsert(ctx context.Context, items []*schema.Quote) error
	List(ctx context.Context) ([]schema.Quote, error)
	Count(ctx context.Context) (int64, error)
	LastUpdated(ctx context.Context) (time.Time, bool, error)
}

type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*schema.User, error)
	GetSingleton(ctx context.Context) (*schema.User, error)
	CreateSingleton(ctx context.Context, username, passwordHash string) error
	UpdateSingleton(ctx context.Context, username, passwordHash string) (bool, error)
}

// Notifier 事件发布（eventbus.Hub 实现）
type Notifier interface {
	Publish(evt eventbus.Event)
	PublishPipelineState(runID, kind, state string, extra map[string]any)
}
