package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
)

// SuggestionRepository 学习建议仓储，只追加
type SuggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

func (r *SuggestionRepository) WithTx(tx *gorm.DB) *SuggestionRepository {
	return &SuggestionRepository{db: tx}
}

// Create 追加一条建议
func (r *SuggestionRepository) Create(ctx context.Context, s *schema.Suggestion) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.ID = 0
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("写入建议失败: %w", err)
	}
	return nil
}

// BulkInsert 单事务批量追加
func (r *SuggestionRepository) BulkInsert(ctx context.Context, items []*schema.Suggestion) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.WithTx(tx)
		for i, s := range items {
			if err := repo.Create(ctx, s); err != nil {
				return fmt.Errorf("第 %d 条建议: %w", i+1, err)
			}
		}
		return nil
	})
}

// List 按日期倒序
func (r *SuggestionRepository) List(ctx context.Context) ([]schema.Suggestion, error) {
	var out []schema.Suggestion
	if err := r.db.WithContext(ctx).Order("date DESC").Order("id DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询建议失败: %w", err)
	}
	return out, nil
}

// Latest 最新一条，不存在返回 nil
func (r *SuggestionRepository) Latest(ctx context.Context) (*schema.Suggestion, error) {
	var s schema.Suggestion
	err := r.db.WithContext(ctx).Order("date DESC").Order("id DESC").First(&s).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最新建议失败: %w", err)
	}
	return &s, nil
}

func (r *SuggestionRepository) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return lastUpdated(ctx, r.db, schema.Suggestion{}.TableName())
}
