package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mindbloom/mindbloom/internal/dto"
	"github.com/mindbloom/mindbloom/internal/schema"
	"github.com/mindbloom/mindbloom/internal/service"
)

// AutoSuggestionInterval 自动生成建议的最小间隔（天）
const AutoSuggestionInterval = 7

var ErrNotLoggedIn = errors.New("尚未登录")

// Manager 本地优先的数据管理：先写缓存，登录后再推送服务端
type Manager struct {
	cache *Cache
	api   API
	now   func() time.Time
}

func NewManager(cache *Cache, api API) *Manager {
	return &Manager{cache: cache, api: api, now: time.Now}
}

// Restore 从缓存恢复会话令牌
func (m *Manager) Restore() error {
	s, err := m.cache.Session()
	if err != nil {
		return err
	}
	if s != nil && s.Token != "" && m.IsLoggedIn() {
		m.api.SetToken(s.Token)
	}
	return nil
}

func (m *Manager) IsLoggedIn() bool {
	s, err := m.cache.Session()
	if err != nil {
		slog.Warn("读取会话失败", "error", err)
		return false
	}
	if s == nil {
		return false
	}
	// 令牌过期视同未登录，避免推送静默失败
	return s.ExpiresAt.IsZero() || m.now().Before(s.ExpiresAt)
}

func (m *Manager) Login(ctx context.Context, username, password string) (*dto.UserDTO, error) {
	resp, err := m.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	s := Session{Token: resp.Token, LoginAt: m.now()}
	if resp.ExpiresAt != nil {
		s.ExpiresAt = *resp.ExpiresAt
	}
	if err := m.cache.SaveSession(s, resp.User); err != nil {
		return nil, err
	}
	m.api.SetToken(resp.Token)
	return &resp.User, nil
}

func (m *Manager) Logout() error {
	m.api.SetToken("")
	return m.cache.ClearSession()
}

// CurrentUser 未登录时返回 nil
func (m *Manager) CurrentUser() (*dto.UserDTO, error) {
	return m.cache.CurrentUser()
}

// pushIfLoggedIn 推送失败只记日志，本地数据已保存
func (m *Manager) pushIfLoggedIn(ctx context.Context, what string, push func(context.Context) error) bool {
	if !m.IsLoggedIn() {
		return false
	}
	if err := push(ctx); err != nil {
		slog.Warn("推送到服务端失败，数据已保存在本地", "kind", what, "error", err)
		return false
	}
	return true
}

// SaveMood 追加一条情绪记录；返回是否已推送
func (m *Manager) SaveMood(ctx context.Context, anxiety, joy int) (bool, error) {
	sample := schema.NewMoodSample(m.now(), anxiety, joy)
	if err := sample.Validate(); err != nil {
		return false, err
	}
	rec := dto.MoodFromSchema(*sample)
	rec.ID = 0

	moods, err := m.cache.Moods()
	if err != nil {
		return false, err
	}
	if err := m.cache.SaveMoods(append(moods, rec)); err != nil {
		return false, err
	}
	return m.pushIfLoggedIn(ctx, "mood", func(ctx context.Context) error {
		return m.api.PushMood(ctx, rec)
	}), nil
}

// SaveTask 覆盖今天的任务快照
func (m *Manager) SaveTask(ctx context.Context, completed, total int) (bool, error) {
	key := schema.DayKey(m.now())
	snap := schema.NewTaskSnapshot(key, completed, total)
	if err := snap.Validate(); err != nil {
		return false, err
	}
	rec := dto.TaskFromSchema(*snap)

	tasks, err := m.cache.Tasks()
	if err != nil {
		return false, err
	}
	tasks[key] = rec
	if err := m.cache.SaveTasks(tasks); err != nil {
		return false, err
	}
	return m.pushIfLoggedIn(ctx, "task", func(ctx context.Context) error {
		return m.api.PushTask(ctx, rec)
	}), nil
}

func (m *Manager) SaveSuggestion(ctx context.Context, s dto.SuggestionDTO) (bool, error) {
	if _, err := s.ToSchema(); err != nil {
		return false, err
	}
	list, err := m.cache.Suggestions()
	if err != nil {
		return false, err
	}
	list = append(list, s)
	if err := m.cache.SaveSuggestions(list); err != nil {
		return false, err
	}
	if s.ID != 0 {
		return false, nil
	}

	var id int64
	pushed := m.pushIfLoggedIn(ctx, "suggestion", func(ctx context.Context) error {
		var err error
		id, err = m.api.PushSuggestion(ctx, s)
		return err
	})
	if !pushed || id == 0 {
		return pushed, nil
	}
	// 记下服务端 id，全量同步时不再重复上传
	list[len(list)-1].ID = id
	if err := m.cache.SaveSuggestions(list); err != nil {
		return true, err
	}
	return true, nil
}

// SaveQuote 寄语只保存本地，随下次全量同步上传
func (m *Manager) SaveQuote(q dto.QuoteDTO) error {
	if _, err := q.ToSchema(); err != nil {
		return err
	}
	list, err := m.cache.Quotes()
	if err != nil {
		return err
	}
	return m.cache.SaveQuotes(append(list, q))
}

// SyncFromCloud 拉取服务端全量数据覆盖本地
func (m *Manager) SyncFromCloud(ctx context.Context) (*dto.DataDTO, error) {
	data, err := m.api.PullAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.cache.ReplaceAll(*data); err != nil {
		return nil, err
	}
	return data, nil
}

// SyncToCloud 上传本地数据；已有服务端 ID 的建议与寄语不再重复上传
func (m *Manager) SyncToCloud(ctx context.Context) error {
	if !m.IsLoggedIn() {
		return ErrNotLoggedIn
	}
	local, err := m.cache.Snapshot()
	if err != nil {
		return err
	}
	payload := dto.DataDTO{MoodData: local.MoodData, TaskData: local.TaskData}
	for _, s := range local.AISuggestions {
		if s.ID == 0 {
			payload.AISuggestions = append(payload.AISuggestions, s)
		}
	}
	for _, q := range local.Quotes {
		if q.ID == 0 {
			payload.Quotes = append(payload.Quotes, q)
		}
	}
	if err := m.api.PushAll(ctx, payload); err != nil {
		return err
	}
	// 服务端分配 ID 后以服务端为准
	_, err = m.SyncFromCloud(ctx)
	return err
}

// ExportFileName 默认导出文件名
func (m *Manager) ExportFileName() string {
	return fmt.Sprintf("mindbloom_data_%s.json", m.now().UTC().Format("2006-01-02"))
}

// Export 将本地数据写入 path
func (m *Manager) Export(path string) error {
	data, err := m.cache.Snapshot()
	if err != nil {
		return err
	}
	out := dto.ExportDTO{DataDTO: data, ExportDate: m.now().UTC()}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化导出数据失败: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	return nil
}

// Import 读取导出文件并覆盖本地；任何一条不合法则整体拒绝
func (m *Manager) Import(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取导入文件失败: %w", err)
	}
	var in dto.ExportDTO
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("%w: 导入文件格式错误: %v", schema.ErrInvalid, err)
	}
	if _, err := in.DataDTO.ToRecords(); err != nil {
		return err
	}
	in.LastUpdated = nil
	return m.cache.ReplaceAll(in.DataDTO)
}

// SuggestionDue 距上次自动生成是否已满 7 个本地日历日
func (m *Manager) SuggestionDue() (bool, error) {
	last, ok, err := m.cache.LastSuggestionDate()
	if err != nil || !ok {
		return !ok, err
	}
	// 两个日期都按日历日解析，只比较天数差
	today, _ := time.Parse(lastSuggestionLayout, m.now().Format(lastSuggestionLayout))
	days := int(math.Ceil(math.Abs(today.Sub(last).Hours()) / 24))
	return days >= AutoSuggestionInterval, nil
}

// CheckAutoSuggestion 到期时生成一条建议并记录日期；未到期返回 nil
func (m *Manager) CheckAutoSuggestion(ctx context.Context) (*dto.SuggestionDTO, error) {
	due, err := m.SuggestionDue()
	if err != nil || !due {
		return nil, err
	}
	s, _, err := m.GenerateSuggestion(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.cache.SetLastSuggestionDate(m.now()); err != nil {
		return nil, err
	}
	return s, nil
}

// GenerateSuggestion 请求服务端生成；服务端不可达时用本地数据走规则建议
func (m *Manager) GenerateSuggestion(ctx context.Context) (*dto.SuggestionDTO, string, error) {
	resp, err := m.api.GenerateSuggestion(ctx)
	if err == nil {
		// 服务端已落库，本地只缓存
		if _, err := m.SaveSuggestion(ctx, resp.Suggestion); err != nil {
			return nil, "", err
		}
		return &resp.Suggestion, resp.Source, nil
	}
	slog.Warn("服务端生成建议失败，使用本地规则建议", "error", err)

	stats, err := m.localStats()
	if err != nil {
		return nil, "", err
	}
	s := dto.SuggestionDTO{
		Title:   schema.SuggestionTitle,
		Content: service.FallbackSuggestion(*stats),
		Date:    m.now().UTC(),
		Metrics: stats,
	}
	if _, err := m.SaveSuggestion(ctx, s); err != nil {
		return nil, "", err
	}
	return &s, string(service.SourceFallback), nil
}

// GenerateQuote 服务端失败时从内置寄语库按日取一条
func (m *Manager) GenerateQuote(ctx context.Context) (*dto.QuoteDTO, error) {
	now := m.now()
	q := dto.QuoteDTO{Date: now.UTC()}
	resp, err := m.api.GenerateQuote(ctx)
	if err == nil && strings.TrimSpace(resp.Quote) != "" {
		q.Text = resp.Quote
		q.IsAI = resp.IsAI
	} else {
		if err != nil {
			slog.Warn("服务端生成寄语失败，使用内置寄语", "error", err)
		}
		q.Text = service.PoolQuote(now.YearDay())
	}
	if err := m.SaveQuote(q); err != nil {
		return nil, err
	}
	return &q, nil
}

// localStats 与服务端相同的窗口：最近 7 条情绪与最近 7 天任务
func (m *Manager) localStats() (*schema.Stats, error) {
	moods, err := m.cache.Moods()
	if err != nil {
		return nil, err
	}
	tasks, err := m.cache.Tasks()
	if err != nil {
		return nil, err
	}

	sort.Slice(moods, func(i, j int) bool { return moods[i].Date.After(moods[j].Date) })
	if len(moods) > service.StatsWindow {
		moods = moods[:service.StatsWindow]
	}
	stats := &schema.Stats{DaysTracked: len(moods)}
	if len(moods) > 0 {
		var anxiety, joy int
		for _, mo := range moods {
			if mo.Anxiety != nil {
				anxiety += *mo.Anxiety
			}
			if mo.Joy != nil {
				joy += *mo.Joy
			}
		}
		stats.AvgAnxiety = float64(anxiety) / float64(len(moods))
		stats.AvgJoy = float64(joy) / float64(len(moods))
	}

	type dayRate struct {
		day  time.Time
		rate int
	}
	var days []dayRate
	for key, t := range tasks {
		d, err := schema.ParseDayKey(key)
		if err != nil {
			continue
		}
		days = append(days, dayRate{day: d, rate: t.CompletionRate})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].day.After(days[j].day) })
	if len(days) > service.StatsWindow {
		days = days[:service.StatsWindow]
	}
	if len(days) > 0 {
		var rate int
		for _, d := range days {
			rate += d.rate
		}
		stats.AvgCompletionRate = float64(rate) / float64(len(days))
	}
	return stats, nil
}
