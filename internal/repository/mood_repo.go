package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MoodRepository 情绪数据仓储
type MoodRepository struct {
	db *gorm.DB
}

// NewMoodRepository 创建仓储
func NewMoodRepository(db *gorm.DB) *MoodRepository {
	return &MoodRepository{db: db}
}

// WithTx 绑定到外部事务
func (r *MoodRepository) WithTx(tx *gorm.DB) *MoodRepository {
	return &MoodRepository{db: tx}
}

// Upsert 按采样时间插入或覆盖
func (r *MoodRepository) Upsert(ctx context.Context, m *schema.MoodSample) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.Normalize()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"anxiety", "joy", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("写入情绪数据失败: %w", err)
	}
	return nil
}

// BulkUpsert 单事务批量写入，任一条失败则全部回滚
func (r *MoodRepository) BulkUpsert(ctx context.Context, samples []*schema.MoodSample) error {
	if len(samples) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.WithTx(tx)
		for i, s := range samples {
			if err := repo.Upsert(ctx, s); err != nil {
				return fmt.Errorf("第 %d 条情绪数据: %w", i+1, err)
			}
		}
		return nil
	})
}

// List 按采样时间倒序返回全部
func (r *MoodRepository) List(ctx context.Context) ([]schema.MoodSample, error) {
	var out []schema.MoodSample
	if err := r.db.WithContext(ctx).Order("date DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询情绪数据失败: %w", err)
	}
	return out, nil
}

// Recent 最近 n 条
func (r *MoodRepository) Recent(ctx context.Context, n int) ([]schema.MoodSample, error) {
	var out []schema.MoodSample
	if err := r.db.WithContext(ctx).Order("date DESC").Limit(n).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询最近情绪数据失败: %w", err)
	}
	return out, nil
}

// LastUpdated 最近一次写入时间，无数据时 ok=false
func (r *MoodRepository) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return lastUpdated(ctx, r.db, schema.MoodSample{}.TableName())
}

func lastUpdated(ctx context.Context, db *gorm.DB, table string) (time.Time, bool, error) {
	var row struct {
		UpdatedAt time.Time
	}
	res := db.WithContext(ctx).Table(table).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&row)
	if res.Error != nil {
		return time.Time{}, false, fmt.Errorf("查询 %s 更新时间失败: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return time.Time{}, false, nil
	}
	return row.UpdatedAt, true, nil
}
