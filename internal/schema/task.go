package schema

import (
	"fmt"
	"math"
	"time"
)

// TaskSnapshot 每日任务完成快照，一天一行，后写覆盖先写
type TaskSnapshot struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date           string    `gorm:"size:10;not null;uniqueIndex:uk_task_date" json:"date"` // YYYY-M-D
	Completed      int       `gorm:"not null;default:0" json:"completed"`
	Total          int       `gorm:"not null;default:0" json:"total"`
	CompletionRate int       `gorm:"not null;default:0;check:chk_task_rate,completion_rate BETWEEN 0 AND 100" json:"completionRate"`
	DayStart       time.Time `gorm:"index:idx_task_day_start" json:"-"` // 由 Date 解析，用于按时间排序
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (TaskSnapshot) TableName() string {
	return "task_data"
}

// NewTaskSnapshot 构造快照并计算完成率
func NewTaskSnapshot(dayKey string, completed, total int) *TaskSnapshot {
	t := &TaskSnapshot{Date: dayKey, Completed: completed, Total: total}
	t.CompletionRate = CompletionRate(completed, total)
	return t
}

// CompletionRate total 为 0 时定义为 0
func CompletionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Validate 校验计数与日期键
func (t *TaskSnapshot) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: task 不能为空", ErrInvalid)
	}
	if _, err := ParseDayKey(t.Date); err != nil {
		return fmt.Errorf("%w: task.date=%q 格式错误", ErrInvalid, t.Date)
	}
	if t.Completed < 0 || t.Total < 0 {
		return fmt.Errorf("%w: completed/total 不能为负数", ErrInvalid)
	}
	if t.Completed > t.Total {
		return fmt.Errorf("%w: completed=%d 大于 total=%d", ErrInvalid, t.Completed, t.Total)
	}
	return nil
}

// Normalize 重新计算完成率并填充排序列
func (t *TaskSnapshot) Normalize() {
	t.CompletionRate = CompletionRate(t.Completed, t.Total)
	if day, err := ParseDayKey(t.Date); err == nil {
		t.DayStart = day.UTC()
	}
}
