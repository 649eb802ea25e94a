package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mindbloom/mindbloom/internal/ai"
	"github.com/mindbloom/mindbloom/internal/auth"
	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/mindbloom/mindbloom/internal/repository"
	"github.com/mindbloom/mindbloom/internal/schema"
	"github.com/mindbloom/mindbloom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== Fakes =====

type fakeGenerator struct {
	text       string
	err        error
	configured bool
	calls      int
	last       ai.Prompt
}

func (f *fakeGenerator) Generate(ctx context.Context, p ai.Prompt) (string, error) {
	f.calls++
	f.last = p
	return f.text, f.err
}
func (f *fakeGenerator) IsConfigured() bool { return f.configured }
func (f *fakeGenerator) Name() string       { return "fake" }

type recordingNotifier struct {
	mu     sync.Mutex
	states []string
	events []eventbus.Event
}

func (n *recordingNotifier) Publish(evt eventbus.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) PublishPipelineState(runID, kind, state string, extra map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

type stores struct {
	moods       *repository.MoodRepository
	tasks       *repository.TaskRepository
	suggestions *repository.SuggestionRepository
	quotes      *repository.QuoteRepository
	users       *repository.UserRepository
}

func newStores(t *testing.T) stores {
	t.Helper()
	db := testutil.OpenTestDB(t)
	return stores{
		moods:       repository.NewMoodRepository(db),
		tasks:       repository.NewTaskRepository(db),
		suggestions: repository.NewSuggestionRepository(db),
		quotes:      repository.NewQuoteRepository(db),
		users:       repository.NewUserRepository(db),
	}
}

func newSuggestionService(st stores, gen ai.Generator, n Notifier) *SuggestionService {
	return NewSuggestionService(st.moods, st.tasks, st.suggestions, st.quotes, gen, n, SuggestionConfig{Temperature: 0.7, MaxTokens: 500, RetryDelay: time.Millisecond})
}

// ===== Fallback =====

func TestFallbackSuggestionIsDeterministic(t *testing.T) {
	stats := schema.Stats{AvgAnxiety: 7, AvgJoy: 3, AvgCompletionRate: 40, DaysTracked: 2}
	want := "您的焦虑程度较高，建议尝试冥想或深呼吸练习，每天10-15分钟可以有效缓解学习压力。\n\n" +
		"您的愉悦程度较低，建议在学习中加入一些有趣的元素，比如听喜欢的音乐或学习感兴趣的主题。\n\n" +
		"您的任务完成率较低，建议将大任务分解为小任务，逐步完成，提高成就感。\n\n" +
		"您刚开始使用MindBloom，建议坚持记录，一段时间后会看到明显的变化。"

	got := FallbackSuggestion(stats)
	if got != want {
		t.Fatalf("FallbackSuggestion=%q, want %q", got, want)
	}
	if again := FallbackSuggestion(stats); again != got {
		t.Fatalf("FallbackSuggestion not deterministic")
	}
}

func TestFallbackSuggestionBoundaries(t *testing.T) {
	got := FallbackSuggestion(schema.Stats{AvgAnxiety: 3, AvgJoy: 7, AvgCompletionRate: 80, DaysTracked: 7})
	assert.Contains(t, got, "您的情绪状态良好")
	assert.Contains(t, got, "您的愉悦程度较高")
	assert.Contains(t, got, "您的任务完成率很高")
	assert.Contains(t, got, "一周以上")

	got = FallbackSuggestion(schema.Stats{AvgAnxiety: 6, AvgJoy: 4, AvgCompletionRate: 50, DaysTracked: 3})
	assert.Contains(t, got, "您的焦虑程度适中")
	assert.Contains(t, got, "您的愉悦程度适中")
	assert.Contains(t, got, "您的任务完成率良好")
	assert.Contains(t, got, "一段时间")
}

func TestPoolQuote(t *testing.T) {
	assert.Equal(t, schema.QuotePool[0], PoolQuote(1))
	assert.Equal(t, schema.QuotePool[0], PoolQuote(len(schema.QuotePool)+1))
	assert.Equal(t, PoolQuote(100), PoolQuote(100))
}

func TestBuildSuggestionPrompt(t *testing.T) {
	p := BuildSuggestionPrompt(schema.Stats{AvgAnxiety: 4.3, AvgJoy: 6, AvgCompletionRate: 66.6, DaysTracked: 5}, 0.7, 500)
	assert.Equal(t, 500, p.MaxTokens)
	assert.Equal(t, counselorPersona, p.System)
	assert.Contains(t, p.User, "4.3/10")
	assert.Contains(t, p.User, "67%")
	assert.Contains(t, p.User, "5天")
	assert.Contains(t, p.User, schema.SuggestionTitle)
}

// ===== Suggestion pipeline =====

func seedRecords(t *testing.T, st stores) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, m := range [][2]int{{8, 2}, {6, 4}} {
		require.NoError(t, st.moods.Upsert(ctx, schema.NewMoodSample(base.Add(time.Duration(i)*24*time.Hour), m[0], m[1])))
	}
	require.NoError(t, st.tasks.Upsert(ctx, schema.NewTaskSnapshot("2025-3-1", 1, 4)))
	require.NoError(t, st.tasks.Upsert(ctx, schema.NewTaskSnapshot("2025-3-2", 2, 4)))
}

func TestAggregate(t *testing.T) {
	st := newStores(t)
	svc := newSuggestionService(st, nil, nil)

	empty, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schema.Stats{}, *empty)

	seedRecords(t, st)
	stats, err := svc.Aggregate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 7.0, stats.AvgAnxiety, 1e-9)
	assert.InDelta(t, 3.0, stats.AvgJoy, 1e-9)
	assert.InDelta(t, 37.5, stats.AvgCompletionRate, 1e-9)
	assert.Equal(t, 2, stats.DaysTracked)
}

func TestGenerateSuggestionUsesExternal(t *testing.T) {
	st := newStores(t)
	seedRecords(t, st)
	gen := &fakeGenerator{text: "  每天散步二十分钟。 ", configured: true}
	n := &recordingNotifier{}
	svc := newSuggestionService(st, gen, n)

	res, err := svc.GenerateSuggestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, "每天散步二十分钟。", res.Suggestion.Content)
	assert.Equal(t, schema.SuggestionTitle, res.Suggestion.Title)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 500, gen.last.MaxTokens)
	assert.Equal(t, []string{StateAggregating, StateGenerating, StatePersisting, StateIdle}, n.states)

	list, err := st.suggestions.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Metrics)
	assert.Equal(t, 2, list[0].Metrics.DaysTracked)
}

func TestGenerateSuggestionFallsBack(t *testing.T) {
	cases := []struct {
		name string
		gen  ai.Generator
	}{
		{"error", &fakeGenerator{err: errors.New("502 bad gateway"), configured: true}},
		{"empty", &fakeGenerator{text: "   ", configured: true}},
		{"not configured", &fakeGenerator{text: "unused"}},
		{"nil generator", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newStores(t)
			seedRecords(t, st)
			svc := newSuggestionService(st, tc.gen, nil)

			res, err := svc.GenerateSuggestion(context.Background())
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, res.Source)
			stats, _ := svc.Aggregate(context.Background())
			assert.Equal(t, FallbackSuggestion(*stats), res.Suggestion.Content)
		})
	}
}

// flakyGenerator 前 failures 次返回 err，之后返回 text
type flakyGenerator struct {
	fakeGenerator
	failures int
}

func (f *flakyGenerator) Generate(ctx context.Context, p ai.Prompt) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return f.text, nil
}

func TestGenerateSuggestionRetriesTransientErrors(t *testing.T) {
	st := newStores(t)
	seedRecords(t, st)
	gen := &flakyGenerator{
		fakeGenerator: fakeGenerator{text: "早点休息。", err: &ai.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}, configured: true},
		failures:      1,
	}
	svc := newSuggestionService(st, gen, nil)

	res, err := svc.GenerateSuggestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, "早点休息。", res.Suggestion.Content)
	assert.Equal(t, 2, gen.calls)

	// 重试次数用尽后回退规则建议
	gen = &flakyGenerator{
		fakeGenerator: fakeGenerator{text: "unused", err: &ai.StatusError{StatusCode: 500, Status: "500"}, configured: true},
		failures:      5,
	}
	svc = newSuggestionService(st, gen, nil)
	res, err = svc.GenerateSuggestion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 2, gen.calls)
}

func TestGenerateQuoteFallsBackToPool(t *testing.T) {
	st := newStores(t)
	svc := newSuggestionService(st, &fakeGenerator{err: errors.New("down"), configured: true}, nil)
	day := time.Date(2025, 1, 3, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return day }

	res, err := svc.GenerateQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, schema.QuotePool[2], res.Quote.Text)
	assert.False(t, res.Quote.IsGenerated)
}

func TestGenerateQuoteFromExternal(t *testing.T) {
	st := newStores(t)
	svc := newSuggestionService(st, &fakeGenerator{text: "“慢慢来，比较快。”", configured: true}, nil)

	res, err := svc.GenerateQuote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAI, res.Source)
	assert.Equal(t, "慢慢来，比较快。", res.Quote.Text)
	assert.True(t, res.Quote.IsGenerated)
}

func TestRunDailyWritesSuggestionAndQuote(t *testing.T) {
	st := newStores(t)
	svc := newSuggestionService(st, nil, nil)
	require.NoError(t, svc.RunDaily(context.Background()))

	sugs, _ := st.suggestions.List(context.Background())
	quotes, _ := st.quotes.List(context.Background())
	assert.Len(t, sugs, 1)
	assert.Len(t, quotes, 1)
}

// ===== Sync =====

func TestPushAllValidatesWholeSnapshotFirst(t *testing.T) {
	st := newStores(t)
	svc := NewSyncService(st.moods, st.tasks, st.suggestions, st.quotes, nil)
	ctx := context.Background()

	snap := &PushSnapshot{
		Moods: []*schema.MoodSample{schema.NewMoodSample(time.Now(), 5, 5)},
		Tasks: []*schema.TaskSnapshot{
			schema.NewTaskSnapshot("2025-3-1", 1, 2),
			schema.NewTaskSnapshot("2025-3-2", 2, 2),
			schema.NewTaskSnapshot("2025-3-3", 0, 2),
			schema.NewTaskSnapshot("2025-3-4", 3, 2), // completed > total
		},
	}
	_, err := svc.PushAll(ctx, snap)
	require.ErrorIs(t, err, ErrValidation)

	got, err := svc.PullAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Moods)
	assert.Empty(t, got.Tasks)
}

func TestPushAllThenPullAll(t *testing.T) {
	st := newStores(t)
	n := &recordingNotifier{}
	svc := NewSyncService(st.moods, st.tasks, st.suggestions, st.quotes, n)
	ctx := context.Background()
	now := time.Now().UTC()

	res, err := svc.PushAll(ctx, &PushSnapshot{
		Moods:       []*schema.MoodSample{schema.NewMoodSample(now, 3, 8)},
		Tasks:       []*schema.TaskSnapshot{schema.NewTaskSnapshot("2025-3-9", 1, 2)},
		Suggestions: []*schema.Suggestion{{Title: schema.SuggestionTitle, Content: "x", Date: now}},
		Quotes:      []*schema.Quote{{Text: "q", Date: now, IsGenerated: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, PushResult{Moods: 1, Tasks: 1, Suggestions: 1, Quotes: 1}, *res)
	require.Len(t, n.events, 1)
	assert.Equal(t, eventbus.TypeRecordsChanged, n.events[0].Type)

	snap, err := svc.PullAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Moods, 1)
	require.Contains(t, snap.Tasks, "2025-3-9")
	assert.Equal(t, 50, snap.Tasks["2025-3-9"].CompletionRate)
	assert.Len(t, snap.Suggestions, 1)
	assert.Len(t, snap.Quotes, 1)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestPullAllEmptyUsesNow(t *testing.T) {
	st := newStores(t)
	svc := NewSyncService(st.moods, st.tasks, st.suggestions, st.quotes, nil)
	fixed := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	snap, err := svc.PullAll(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.LastUpdated.Equal(fixed))
	assert.NotNil(t, snap.Tasks)
}

func TestPushOneRejectsInvalid(t *testing.T) {
	st := newStores(t)
	svc := NewSyncService(st.moods, st.tasks, st.suggestions, st.quotes, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.PushMood(ctx, schema.NewMoodSample(time.Now(), 0, 5)), ErrValidation)
	assert.ErrorIs(t, svc.PushTask(ctx, schema.NewTaskSnapshot("bad", 1, 1)), ErrValidation)
	assert.ErrorIs(t, svc.PushSuggestion(ctx, &schema.Suggestion{}), ErrValidation)
	assert.ErrorIs(t, svc.PushQuote(ctx, &schema.Quote{}), ErrValidation)
	assert.NoError(t, svc.PushQuote(ctx, &schema.Quote{Text: "ok", Date: time.Now()}))
}

// ===== Auth =====

func TestAuthServiceVerify(t *testing.T) {
	st := newStores(t)
	svc := NewAuthService(st.users, auth.NewTokenIssuer("secret"))
	ctx := context.Background()

	created, err := svc.EnsureDefault(ctx, "admin", "mindbloom2025")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureDefault(ctx, "other", "x")
	require.NoError(t, err)
	assert.False(t, created)

	u, err := svc.Verify(ctx, "admin", "mindbloom2025")
	require.NoError(t, err)
	assert.EqualValues(t, schema.SingletonUserID, u.ID)

	_, errWrong := svc.Verify(ctx, "admin", "nope")
	_, errUnknown := svc.Verify(ctx, "ghost", "mindbloom2025")
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	res, err := svc.Login(ctx, "admin", "mindbloom2025")
	require.NoError(t, err)
	name, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", name)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthServiceUpdateAndCurrent(t *testing.T) {
	st := newStores(t)
	svc := NewAuthService(st.users, nil)
	ctx := context.Background()

	_, err := svc.Current(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Update(ctx, "a", "b"), ErrNotFound)

	_, err = svc.EnsureDefault(ctx, "admin", "pw")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Update(ctx, " ", "b"), ErrValidation)
	assert.ErrorIs(t, svc.Update(ctx, "a", ""), ErrValidation)

	require.NoError(t, svc.Update(ctx, "newname", "newpw"))
	u, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newname", u.Username)

	_, err = svc.Verify(ctx, "newname", "newpw")
	assert.NoError(t, err)
	_, err = svc.Verify(ctx, "admin", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeedIsIdempotent(t *testing.T) {
	st := newStores(t)
	authSvc := NewAuthService(st.users, nil)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, authSvc, st.quotes, "admin", "pw"))
	require.NoError(t, Seed(ctx, authSvc, st.quotes, "admin", "pw"))

	quotes, err := st.quotes.List(ctx)
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, schema.QuotePool[0], quotes[0].Text)
}

// ===== Scheduler =====

type countingRunner struct {
	n   int
	err error
}

func (r *countingRunner) RunDaily(ctx context.Context) error { r.n++; return r.err }

func TestSchedulerFireLogsRunnerError(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	r := &countingRunner{err: errors.New("quote store down")}
	NewScheduler(r).fire()

	assert.Equal(t, 1, r.n)
	assert.Contains(t, buf.String(), "每日定时任务失败")
	assert.Contains(t, buf.String(), "quote store down")
}

func TestSchedulerReschedule(t *testing.T) {
	s := NewScheduler(&countingRunner{})
	require.NoError(t, s.Reschedule(config.ScheduleConfig{Time: "23:00"}))
	tm, spec := s.Current()
	assert.Equal(t, "23:00", tm)
	assert.Equal(t, "0 23 * * *", spec)

	assert.Error(t, s.Reschedule(config.ScheduleConfig{Time: "25:00"}))
	_, spec = s.Current()
	assert.Equal(t, "0 23 * * *", spec, "invalid time keeps the previous schedule")

	require.NoError(t, s.Reschedule(config.ScheduleConfig{Time: "07:30"}))
	_, spec = s.Current()
	assert.Equal(t, "30 7 * * *", spec)
	assert.Len(t, s.cron.Entries(), 1)

	s.Start()
	s.Stop()
}
