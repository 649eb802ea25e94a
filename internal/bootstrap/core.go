package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mindbloom/mindbloom/internal/ai"
	"github.com/mindbloom/mindbloom/internal/auth"
	"github.com/mindbloom/mindbloom/internal/eventbus"
	"github.com/mindbloom/mindbloom/internal/pkg/config"
	"github.com/mindbloom/mindbloom/internal/repository"
	"github.com/mindbloom/mindbloom/internal/service"
)

// Core 持有服务端命令共享的核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database
	Hub *eventbus.Hub

	Repos struct {
		Users       *repository.UserRepository
		Moods       *repository.MoodRepository
		Tasks       *repository.TaskRepository
		Suggestions *repository.SuggestionRepository
		Quotes      *repository.QuoteRepository
	}

	Services struct {
		Auth        *service.AuthService
		Sync        *service.SyncService
		Suggestions *service.SuggestionService
		Scheduler   *service.Scheduler
	}

	Clients struct {
		Generator ai.Generator
	}
}

// NewCore 按配置构建核心依赖（不启动 HTTP 与定时任务）
func NewCore(ctx context.Context, cfg *config.Config) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg 不能为空")
	}
	db, err := repository.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Users = repository.NewUserRepository(db.DB)
	c.Repos.Moods = repository.NewMoodRepository(db.DB)
	c.Repos.Tasks = repository.NewTaskRepository(db.DB)
	c.Repos.Suggestions = repository.NewSuggestionRepository(db.DB)
	c.Repos.Quotes = repository.NewQuoteRepository(db.DB)

	// Clients
	gen, err := ai.NewGenerator(ctx, cfg.AI)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.Clients.Generator = gen
	if !gen.IsConfigured() {
		slog.Warn("AI 未配置，建议与寄语将使用内置规则生成", "provider", gen.Name())
	}

	// Services
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		slog.Warn("未配置 auth.jwt_secret，使用随机密钥，重启后令牌失效")
	}
	c.Services.Auth = service.NewAuthService(c.Repos.Users, auth.NewTokenIssuer(secret))
	c.Services.Sync = service.NewSyncService(c.Repos.Moods, c.Repos.Tasks, c.Repos.Suggestions, c.Repos.Quotes, c.Hub)
	c.Services.Suggestions = service.NewSuggestionService(
		c.Repos.Moods,
		c.Repos.Tasks,
		c.Repos.Suggestions,
		c.Repos.Quotes,
		gen,
		c.Hub,
		service.SuggestionConfig{Temperature: cfg.AI.Temperature, MaxTokens: cfg.AI.MaxTokens},
	)
	c.Services.Scheduler = service.NewScheduler(c.Services.Suggestions)

	return c, nil
}

// Seed 写入默认用户与第一条寄语，重复执行无副作用。降级的表跳过，不阻塞启动。
func (c *Core) Seed(ctx context.Context) error {
	authSvc := c.Services.Auth
	if c.DB.IsDegraded("users") {
		slog.Warn("users 表降级，跳过默认用户初始化")
		authSvc = nil
	}
	var quotes service.QuoteStore = c.Repos.Quotes
	if c.DB.IsDegraded("quotes") {
		slog.Warn("quotes 表降级，跳过默认寄语初始化")
		quotes = nil
	}
	return service.Seed(ctx, authSvc, quotes, c.Cfg.Auth.DefaultUsername, c.Cfg.Auth.DefaultPassword)
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.Services.Scheduler != nil {
		c.Services.Scheduler.Stop()
	}
	if closer, ok := c.Clients.Generator.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// RequireAIConfigured 检查外部生成是否已配置
func (c *Core) RequireAIConfigured() error {
	if c.Clients.Generator == nil || !c.Clients.Generator.IsConfigured() {
		return fmt.Errorf("AI 未配置（ai.api_key）")
	}
	return nil
}
