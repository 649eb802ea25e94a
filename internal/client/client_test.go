package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindbloom/mindbloom/internal/auth"
	"github.com/mindbloom/mindbloom/internal/dto"
	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/httpapi"
	"github.com/mindbloom/mindbloom/internal/repository"
	"github.com/mindbloom/mindbloom/internal/schema"
	"github.com/mindbloom/mindbloom/internal/service"
	"github.com/mindbloom/mindbloom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenMemoryCache()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// offlineAPI 模拟服务端不可达
type offlineAPI struct {
	pushed int
}

var errOffline = errors.New("offline")

func (a *offlineAPI) Login(context.Context, string, string) (*dto.LoginResponse, error) {
	return &dto.LoginResponse{Success: true, User: dto.UserDTO{ID: 1, Username: "admin"}, Token: "tok"}, nil
}
func (a *offlineAPI) SetToken(string) {}
func (a *offlineAPI) PullAll(context.Context) (*dto.DataDTO, error) { return nil, errOffline }
func (a *offlineAPI) PushAll(context.Context, dto.DataDTO) error { a.pushed++; return errOffline }
func (a *offlineAPI) PushMood(context.Context, dto.MoodDTO) error { a.pushed++; return errOffline }
func (a *offlineAPI) PushTask(context.Context, dto.TaskDTO) error { a.pushed++; return errOffline }
func (a *offlineAPI) PushQuote(context.Context, dto.QuoteDTO) (int64, error) {
	a.pushed++
	return 0, errOffline
}
func (a *offlineAPI) PushSuggestion(context.Context, dto.SuggestionDTO) (int64, error) {
	a.pushed++
	return 0, errOffline
}
func (a *offlineAPI) GenerateSuggestion(context.Context) (*dto.SuggestionResponse, error) {
	return nil, errOffline
}
func (a *offlineAPI) GenerateQuote(context.Context) (*dto.QuoteResponse, error) {
	return nil, errOffline
}

func TestCacheSessionLifecycle(t *testing.T) {
	c := openCache(t)

	s, err := c.Session()
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, c.SaveSession(Session{Token: "abc", LoginAt: time.Now()}, dto.UserDTO{ID: 1, Username: "admin"}))
	s, err = c.Session()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "abc", s.Token)
	u, err := c.CurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)

	require.NoError(t, c.ClearSession())
	s, err = c.Session()
	require.NoError(t, err)
	assert.Nil(t, s)
	u, err = c.CurrentUser()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := OpenCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.SaveTasks(map[string]dto.TaskDTO{"2025-3-7": {Date: "2025-3-7"}}))
	require.NoError(t, c.Close())

	c, err = OpenCache(dir)
	require.NoError(t, err)
	defer c.Close()
	tasks, err := c.Tasks()
	require.NoError(t, err)
	assert.Contains(t, tasks, "2025-3-7")
}

func TestSaveWhileOfflineKeepsLocalData(t *testing.T) {
	api := &offlineAPI{}
	m := NewManager(openCache(t), api)

	pushed, err := m.SaveMood(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Zero(t, api.pushed, "未登录时不应推送")

	_, err = m.Login(context.Background(), "admin", "x")
	require.NoError(t, err)
	pushed, err = m.SaveTask(context.Background(), 2, 4)
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Equal(t, 1, api.pushed)

	moods, err := m.cache.Moods()
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, 3, *moods[0].Anxiety)
	tasks, err := m.cache.Tasks()
	require.NoError(t, err)
	task := tasks[schema.DayKey(time.Now())]
	assert.Equal(t, 50, task.CompletionRate)
}

func TestSaveMoodRejectsOutOfRange(t *testing.T) {
	m := NewManager(openCache(t), &offlineAPI{})
	_, err := m.SaveMood(context.Background(), 0, 5)
	assert.ErrorIs(t, err, schema.ErrInvalid)
	moods, err := m.cache.Moods()
	require.NoError(t, err)
	assert.Empty(t, moods)
}

func TestSuggestionDue(t *testing.T) {
	m := NewManager(openCache(t), &offlineAPI{})

	due, err := m.SuggestionDue()
	require.NoError(t, err)
	assert.True(t, due, "从未生成过")

	require.NoError(t, m.cache.SetLastSuggestionDate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	m.now = func() time.Time { return time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC) }
	due, err = m.SuggestionDue()
	require.NoError(t, err)
	assert.False(t, due)

	m.now = func() time.Time { return time.Date(2026, 1, 8, 1, 0, 0, 0, time.UTC) }
	due, err = m.SuggestionDue()
	require.NoError(t, err)
	assert.True(t, due)
}

func TestSuggestionDueUsesLocalCalendarDay(t *testing.T) {
	m := NewManager(openCache(t), &offlineAPI{})
	zone := time.FixedZone("UTC+8", 8*3600)

	require.NoError(t, m.cache.SetLastSuggestionDate(time.Date(2026, 1, 1, 7, 0, 0, 0, zone)))
	// 本地已是 1 月 8 日，UTC 仍是 1 月 7 日
	m.now = func() time.Time { return time.Date(2026, 1, 8, 7, 0, 0, 0, zone) }
	due, err := m.SuggestionDue()
	require.NoError(t, err)
	assert.True(t, due)

	m.now = func() time.Time { return time.Date(2026, 1, 7, 23, 30, 0, 0, zone) }
	due, err = m.SuggestionDue()
	require.NoError(t, err)
	assert.False(t, due)
}

func TestExpiredSessionCountsAsLoggedOut(t *testing.T) {
	api := &offlineAPI{}
	m := NewManager(openCache(t), api)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.cache.SaveSession(Session{Token: "old", ExpiresAt: now.Add(-time.Minute)}, dto.UserDTO{Username: "admin"}))
	assert.False(t, m.IsLoggedIn())
	pushed, err := m.SaveMood(context.Background(), 3, 4)
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Zero(t, api.pushed)
	assert.ErrorIs(t, m.SyncToCloud(context.Background()), ErrNotLoggedIn)

	require.NoError(t, m.cache.SaveSession(Session{Token: "new", ExpiresAt: now.Add(time.Hour)}, dto.UserDTO{Username: "admin"}))
	assert.True(t, m.IsLoggedIn())
}

func TestCheckAutoSuggestionFallsBackLocally(t *testing.T) {
	m := NewManager(openCache(t), &offlineAPI{})
	ctx := context.Background()
	for _, v := range [][2]int{{8, 3}, {7, 4}} {
		_, err := m.SaveMood(ctx, v[0], v[1])
		require.NoError(t, err)
	}

	s, err := m.CheckAutoSuggestion(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, schema.SuggestionTitle, s.Title)
	assert.Equal(t, 2, s.Metrics.DaysTracked)
	assert.InDelta(t, 7.5, s.Metrics.AvgAnxiety, 1e-9)
	assert.Equal(t, service.FallbackSuggestion(*s.Metrics), s.Content)

	again, err := m.CheckAutoSuggestion(ctx)
	require.NoError(t, err)
	assert.Nil(t, again, "同一天不应重复生成")
}

func TestGenerateQuoteUsesPoolOffline(t *testing.T) {
	m := NewManager(openCache(t), &offlineAPI{})
	m.now = func() time.Time { return time.Date(2026, 1, 3, 9, 0, 0, 0, time.Local) }

	q, err := m.GenerateQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema.QuotePool[2], q.Text)
	assert.False(t, q.IsAI)

	quotes, err := m.cache.Quotes()
	require.NoError(t, err)
	assert.Len(t, quotes, 1)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewManager(openCache(t), &offlineAPI{})
	_, err := src.SaveMood(ctx, 4, 6)
	require.NoError(t, err)
	_, err = src.SaveTask(ctx, 1, 3)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), src.ExportFileName())
	require.NoError(t, src.Export(path))

	dst := NewManager(openCache(t), &offlineAPI{})
	require.NoError(t, dst.Import(path))
	moods, err := dst.cache.Moods()
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Equal(t, 6, *moods[0].Joy)
	tasks, err := dst.cache.Tasks()
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := testutil.OpenTestDB(t)
	moods := repository.NewMoodRepository(db)
	tasks := repository.NewTaskRepository(db)
	suggestions := repository.NewSuggestionRepository(db)
	quotes := repository.NewQuoteRepository(db)
	hub := eventbus.NewHub()
	authSvc := service.NewAuthService(repository.NewUserRepository(db), auth.NewTokenIssuer("test-secret"))
	require.NoError(t, service.Seed(context.Background(), authSvc, quotes, "admin", "mindbloom2025"))

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Deps{
		Sync:        service.NewSyncService(moods, tasks, suggestions, quotes, hub),
		Suggestions: service.NewSuggestionService(moods, tasks, suggestions, quotes, nil, hub, service.SuggestionConfig{}),
		Auth:        authSvc,
		Hub:         hub,
	}, httpapi.Options{RequireToken: true}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalFirstSyncAgainstServer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	api := NewHTTPClient(srv.URL)
	m := NewManager(openCache(t), api)

	pushed, err := m.SaveMood(ctx, 5, 7)
	require.NoError(t, err)
	assert.False(t, pushed)

	remote, err := api.PullAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, remote.MoodData, "未登录的记录不应出现在服务端")

	_, err = m.Login(ctx, "admin", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "用户名或密码错误", apiErr.Message)
	assert.False(t, m.IsLoggedIn())

	user, err := m.Login(ctx, "admin", "mindbloom2025")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	require.NoError(t, m.SyncToCloud(ctx))

	remote, err = api.PullAll(ctx)
	require.NoError(t, err)
	require.Len(t, remote.MoodData, 1)
	assert.Equal(t, 5, *remote.MoodData[0].Anxiety)

	// 登录后单条写入直接推送
	pushed, err = m.SaveTask(ctx, 3, 4)
	require.NoError(t, err)
	assert.True(t, pushed)

	// 重复同步不会复制已有 ID 的寄语
	require.NoError(t, m.SyncToCloud(ctx))
	require.NoError(t, m.SyncToCloud(ctx))
	remote, err = api.PullAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remote.Quotes, 1)
	assert.Len(t, remote.TaskData, 1)

	// 单条推送成功的建议记下服务端 id，之后全量同步不再重复上传
	pushed, err = m.SaveSuggestion(ctx, dto.SuggestionDTO{
		Title:   schema.SuggestionTitle,
		Content: "多休息",
		Date:    time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.True(t, pushed)
	local, err := m.cache.Suggestions()
	require.NoError(t, err)
	require.Len(t, local, 1)
	assert.NotZero(t, local[0].ID)

	require.NoError(t, m.SyncToCloud(ctx))
	require.NoError(t, m.SyncToCloud(ctx))
	remote, err = api.PullAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remote.AISuggestions, 1)

	require.NoError(t, m.Logout())
	assert.False(t, m.IsLoggedIn())
	err = m.SyncToCloud(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
