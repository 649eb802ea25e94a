package schema

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SuggestionTitle 建议标题固定
const SuggestionTitle = "本周学习建议"

// Suggestion 生成的学习建议，只追加不去重
type Suggestion struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Date      time.Time `gorm:"not null;index:idx_suggestion_date" json:"date"`
	Metrics   *Stats    `gorm:"type:text" json:"metrics"` // 生成时的统计快照，可为空
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Suggestion) TableName() string {
	return "ai_suggestions"
}

// Validate 校验必填字段
func (s *Suggestion) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: suggestion 不能为空", ErrInvalid)
	}
	if strings.TrimSpace(s.Title) == "" || strings.TrimSpace(s.Content) == "" {
		return fmt.Errorf("%w: suggestion.title/content 不能为空", ErrInvalid)
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: suggestion.date 不能为空", ErrInvalid)
	}
	return nil
}

// Stats 最近数据的聚合统计
type Stats struct {
	AvgAnxiety        float64 `json:"avgAnxiety"`
	AvgJoy            float64 `json:"avgJoy"`
	AvgCompletionRate float64 `json:"avgCompletionRate"`
	DaysTracked       int     `json:"daysTracked"`
}

// Value 实现 driver.Valuer 接口，nil 存为 NULL
func (s *Stats) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口
func (s *Stats) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid type for Stats")
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, s)
}
