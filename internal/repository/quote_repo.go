package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
)

// QuoteRepository 寄语仓储，只追加
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) WithTx(tx *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: tx}
}

func (r *QuoteRepository) Create(ctx context.Context, q *schema.Quote) error {
	if err := q.Validate(); err != nil {
		return err
	}
	q.ID = 0
	if err := r.db.WithContext(ctx).Create(q).Error; err != nil {
		return fmt.Errorf("写入寄语失败: %w", err)
	}
	return nil
}

func (r *QuoteRepository) BulkInsert(ctx context.Context, items []*schema.Quote) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.WithTx(tx)
		for i, q := range items {
			if err := repo.Create(ctx, q); err != nil {
				return fmt.Errorf("第 %d 条寄语: %w", i+1, err)
			}
		}
		return nil
	})
}

func (r *QuoteRepository) List(ctx context.Context) ([]schema.Quote, error) {
	var out []schema.Quote
	if err := r.db.WithContext(ctx).Order("date DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询寄语失败: %w", err)
	}
	return out, nil
}

// Count 寄语总数，用于判断是否需要写入种子数据
func (r *QuoteRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&schema.Quote{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计寄语失败: %w", err)
	}
	return n, nil
}

func (r *QuoteRepository) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return lastUpdated(ctx, r.db, schema.Quote{}.TableName())
}
