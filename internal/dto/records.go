package dto

// 本包承载对外契约（HTTP 与客户端缓存共用的 JSON 形状），字段名与前端保持一致。

import (
	"fmt"
	"sort"
	"time"

	"github.com/mindbloom/mindbloom/internal/schema"
)

type MoodDTO struct {
	ID      int64     `json:"id,omitempty"`
	Date    time.Time `json:"date"`
	Anxiety *int      `json:"anxiety"`
	Joy     *int      `json:"joy"`
	DateKey string    `json:"dateKey,omitempty"`
	// 旧版接口使用下划线命名，只读
	LegacyDateKey string `json:"date_key,omitempty"`
}

type TaskDTO struct {
	Date           string `json:"date"`
	Completed      *int   `json:"completed"`
	Total          *int   `json:"total"`
	CompletionRate int    `json:"completionRate"`
}

type SuggestionDTO struct {
	ID      int64         `json:"id,omitempty"`
	Title   string        `json:"title"`
	Content string        `json:"content"`
	Date    time.Time     `json:"date"`
	Metrics *schema.Stats `json:"metrics"`
}

type QuoteDTO struct {
	ID   int64     `json:"id,omitempty"`
	Text string    `json:"text"`
	Date time.Time `json:"date"`
	IsAI bool      `json:"isAI"`
}

// DataDTO 全量数据，taskData 以日期键为 key
type DataDTO struct {
	MoodData      []MoodDTO          `json:"moodData"`
	TaskData      map[string]TaskDTO `json:"taskData"`
	AISuggestions []SuggestionDTO    `json:"aiSuggestions"`
	Quotes        []QuoteDTO         `json:"quotes"`
	LastUpdated   *time.Time         `json:"lastUpdated,omitempty"`
}

// ExportDTO 导出文件格式
type ExportDTO struct {
	DataDTO
	ExportDate time.Time `json:"exportDate"`
}

func intPtr(v int) *int { return &v }

// ========== schema -> dto ==========

func MoodFromSchema(m schema.MoodSample) MoodDTO {
	return MoodDTO{
		ID:      m.ID,
		Date:    m.Date,
		Anxiety: intPtr(m.Anxiety),
		Joy:     intPtr(m.Joy),
		DateKey: m.DateKey,
	}
}

func TaskFromSchema(t schema.TaskSnapshot) TaskDTO {
	return TaskDTO{
		Date:           t.Date,
		Completed:      intPtr(t.Completed),
		Total:          intPtr(t.Total),
		CompletionRate: t.CompletionRate,
	}
}

func SuggestionFromSchema(s schema.Suggestion) SuggestionDTO {
	return SuggestionDTO{ID: s.ID, Title: s.Title, Content: s.Content, Date: s.Date, Metrics: s.Metrics}
}

func QuoteFromSchema(q schema.Quote) QuoteDTO {
	return QuoteDTO{ID: q.ID, Text: q.Text, Date: q.Date, IsAI: q.IsGenerated}
}

// ========== dto -> schema ==========

// ToSchema 缺少 anxiety/joy 视为不合法；日期键缺省时按采样时间的本地日期生成
func (m MoodDTO) ToSchema() (*schema.MoodSample, error) {
	if m.Anxiety == nil || m.Joy == nil {
		return nil, fmt.Errorf("%w: mood 缺少 anxiety/joy", schema.ErrInvalid)
	}
	key := m.DateKey
	if key == "" {
		key = m.LegacyDateKey
	}
	if key == "" && !m.Date.IsZero() {
		key = schema.DayKey(m.Date.Local())
	}
	if canon, err := schema.CanonicalDayKey(key); err == nil {
		key = canon
	}
	s := &schema.MoodSample{Date: m.Date, Anxiety: *m.Anxiety, Joy: *m.Joy, DateKey: key}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ToSchema 缺少 completed/total 视为不合法；dayKey 非空时以它为准
func (t TaskDTO) ToSchema(dayKey string) (*schema.TaskSnapshot, error) {
	if dayKey == "" {
		dayKey = t.Date
	}
	if t.Completed == nil || t.Total == nil {
		return nil, fmt.Errorf("%w: task %q 缺少 completed/total", schema.ErrInvalid, dayKey)
	}
	// 旧客户端可能发来补零写法，统一成规范键后再做唯一约束
	if canon, err := schema.CanonicalDayKey(dayKey); err == nil {
		dayKey = canon
	}
	s := schema.NewTaskSnapshot(dayKey, *t.Completed, *t.Total)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s SuggestionDTO) ToSchema() (*schema.Suggestion, error) {
	out := &schema.Suggestion{Title: s.Title, Content: s.Content, Date: s.Date, Metrics: s.Metrics}
	if out.Title == "" {
		out.Title = schema.SuggestionTitle
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func (q QuoteDTO) ToSchema() (*schema.Quote, error) {
	out := &schema.Quote{Text: q.Text, Date: q.Date, IsGenerated: q.IsAI}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Records 已校验的全量记录
type Records struct {
	Moods       []*schema.MoodSample
	Tasks       []*schema.TaskSnapshot
	Suggestions []*schema.Suggestion
	Quotes      []*schema.Quote
}

// ToRecords 转换并校验所有记录，遇到第一条不合法记录即返回错误
func (d DataDTO) ToRecords() (*Records, error) {
	out := &Records{}
	for i, m := range d.MoodData {
		s, err := m.ToSchema()
		if err != nil {
			return nil, fmt.Errorf("moodData[%d]: %w", i, err)
		}
		out.Moods = append(out.Moods, s)
	}

	// map 无序，按日期键排序保证写入顺序稳定
	keys := make([]string, 0, len(d.TaskData))
	for k := range d.TaskData {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := d.TaskData[k].ToSchema(k)
		if err != nil {
			return nil, fmt.Errorf("taskData[%s]: %w", k, err)
		}
		out.Tasks = append(out.Tasks, s)
	}

	for i, sg := range d.AISuggestions {
		s, err := sg.ToSchema()
		if err != nil {
			return nil, fmt.Errorf("aiSuggestions[%d]: %w", i, err)
		}
		out.Suggestions = append(out.Suggestions, s)
	}
	for i, q := range d.Quotes {
		s, err := q.ToSchema()
		if err != nil {
			return nil, fmt.Errorf("quotes[%d]: %w", i, err)
		}
		out.Quotes = append(out.Quotes, s)
	}
	return out, nil
}

// DataFromSchema 组装全量数据
func DataFromSchema(moods []schema.MoodSample, tasks map[string]schema.TaskSnapshot, suggestions []schema.Suggestion, quotes []schema.Quote, lastUpdated time.Time) DataDTO {
	out := DataDTO{
		MoodData:      make([]MoodDTO, 0, len(moods)),
		TaskData:      make(map[string]TaskDTO, len(tasks)),
		AISuggestions: make([]SuggestionDTO, 0, len(suggestions)),
		Quotes:        make([]QuoteDTO, 0, len(quotes)),
	}
	for _, m := range moods {
		out.MoodData = append(out.MoodData, MoodFromSchema(m))
	}
	for k, t := range tasks {
		out.TaskData[k] = TaskFromSchema(t)
	}
	for _, s := range suggestions {
		out.AISuggestions = append(out.AISuggestions, SuggestionFromSchema(s))
	}
	for _, q := range quotes {
		out.Quotes = append(out.Quotes, QuoteFromSchema(q))
	}
	if !lastUpdated.IsZero() {
		lu := lastUpdated
		out.LastUpdated = &lu
	}
	return out
}
