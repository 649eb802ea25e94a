package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindbloom/mindbloom/internal/pkg/config"
)

// ErrNotConfigured 未配置 API Key，调用方应直接走降级
var ErrNotConfigured = errors.New("AI 服务未配置")

// Prompt 一次生成请求
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Generator 文本生成后端
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	IsConfigured() bool
	Name() string
}

// NewGenerator 按配置选择后端
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewChatClient(&ChatConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, &GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("不支持的 AI provider: %s", cfg.Provider)
	}
}
