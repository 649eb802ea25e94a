package schema

import (
	"fmt"
	"time"
)

// MoodSample 情绪采样（焦虑/愉悦 1-10 分）
// 自然键为采样时间 Date，同一时刻重复推送会覆盖而不是追加
type MoodSample struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Date      time.Time `gorm:"not null;uniqueIndex:uk_mood_date" json:"date"`
	Anxiety   int       `gorm:"not null;check:chk_mood_anxiety,anxiety BETWEEN 1 AND 10" json:"anxiety"`
	Joy       int       `gorm:"not null;check:chk_mood_joy,joy BETWEEN 1 AND 10" json:"joy"`
	DateKey   string    `gorm:"size:10;not null;index:idx_mood_date_key" json:"date_key"` // 采集时生成，之后不再重算
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (MoodSample) TableName() string {
	return "mood_data"
}

// NewMoodSample 在采集时刻生成样本，DateKey 取本地日期
func NewMoodSample(at time.Time, anxiety, joy int) *MoodSample {
	return &MoodSample{
		Date:    at,
		Anxiety: anxiety,
		Joy:     joy,
		DateKey: DayKey(at),
	}
}

// Validate 校验取值范围与日期键
func (m *MoodSample) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: mood 不能为空", ErrInvalid)
	}
	if m.Date.IsZero() {
		return fmt.Errorf("%w: mood.date 不能为空", ErrInvalid)
	}
	if m.Anxiety < MinScore || m.Anxiety > MaxScore {
		return fmt.Errorf("%w: anxiety=%d 超出范围 [%d,%d]", ErrInvalid, m.Anxiety, MinScore, MaxScore)
	}
	if m.Joy < MinScore || m.Joy > MaxScore {
		return fmt.Errorf("%w: joy=%d 超出范围 [%d,%d]", ErrInvalid, m.Joy, MinScore, MaxScore)
	}
	if _, err := ParseDayKey(m.DateKey); err != nil {
		return fmt.Errorf("%w: date_key=%q 格式错误", ErrInvalid, m.DateKey)
	}
	return nil
}

// Normalize 统一存储为 UTC，保证同一时刻的自然键一致
func (m *MoodSample) Normalize() {
	m.Date = m.Date.UTC()
}
