package schema

import (
	"fmt"
	"strings"
	"time"
)

// Quote 每日寄语，来源为生成或静态池
type Quote struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	Date        time.Time `gorm:"not null;index:idx_quote_date" json:"date"`
	IsGenerated bool      `gorm:"not null;default:false" json:"isAI"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Quote) TableName() string {
	return "quotes"
}

// Validate 校验必填字段
func (q *Quote) Validate() error {
	if q == nil {
		return fmt.Errorf("%w: quote 不能为空", ErrInvalid)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: quote.text 不能为空", ErrInvalid)
	}
	if q.Date.IsZero() {
		return fmt.Errorf("%w: quote.date 不能为空", ErrInvalid)
	}
	return nil
}

// QuotePool 静态寄语池，生成失败时使用
var QuotePool = []string{
	"学习的本质是探索与成长，而非表演与完美。每一步回归真实兴趣的尝试，都是对过去扭曲学习模式的治愈。",
	"真正的学习是内心驱动的探索，不是外界压力下的表演。",
	"允许自己慢慢来，学习没有捷径，只有持续的积累。",
	"学习的快乐来自于过程中的发现，而非最终的结果。",
	"每一次尝试都是进步，每一次失败都是学习的机会。",
	"不要为了别人的期待而学习，要为了自己的成长而努力。",
	"学习是一场马拉松，不是短跑比赛。保持节奏，享受过程。",
	"好奇心是最好的老师，保持对世界的探索欲望。",
}
