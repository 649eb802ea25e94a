package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository 任务快照仓储
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建仓储
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// WithTx 绑定到外部事务
func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

// Upsert 同一天只保留一行，后写覆盖，完成率总是重新计算
func (r *TaskRepository) Upsert(ctx context.Context, t *schema.TaskSnapshot) error {
	if err := t.Validate(); err != nil {
		return err
	}
	t.Normalize()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "total", "completion_rate", "day_start", "updated_at"}),
	}).Create(t).Error
	if err != nil {
		return fmt.Errorf("写入任务数据失败: %w", err)
	}
	return nil
}

// BulkUpsert 单事务批量写入
func (r *TaskRepository) BulkUpsert(ctx context.Context, tasks []*schema.TaskSnapshot) error {
	if len(tasks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.WithTx(tx)
		for i, t := range tasks {
			if err := repo.Upsert(ctx, t); err != nil {
				return fmt.Errorf("第 %d 条任务数据: %w", i+1, err)
			}
		}
		return nil
	})
}

// GetByDate 按日期键获取，不存在返回 nil
func (r *TaskRepository) GetByDate(ctx context.Context, dayKey string) (*schema.TaskSnapshot, error) {
	var t schema.TaskSnapshot
	err := r.db.WithContext(ctx).Where("date = ?", dayKey).First(&t).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("查询任务数据失败: %w", err)
	}
	return &t, nil
}

// List 按日期倒序（按 day_start 排序，避免不补零日期键的字典序问题）
func (r *TaskRepository) List(ctx context.Context) ([]schema.TaskSnapshot, error) {
	var out []schema.TaskSnapshot
	if err := r.db.WithContext(ctx).Order("day_start DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询任务数据失败: %w", err)
	}
	return out, nil
}

// Recent 最近 n 天
func (r *TaskRepository) Recent(ctx context.Context, n int) ([]schema.TaskSnapshot, error) {
	var out []schema.TaskSnapshot
	if err := r.db.WithContext(ctx).Order("day_start DESC").Limit(n).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("查询最近任务数据失败: %w", err)
	}
	return out, nil
}

func (r *TaskRepository) LastUpdated(ctx context.Context) (time.Time, bool, error) {
	return lastUpdated(ctx, r.db, schema.TaskSnapshot{}.TableName())
}
