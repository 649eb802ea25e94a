package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/mindbloom/mindbloom/internal/bootstrap"
	"github.com/mindbloom/mindbloom/internal/service"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "立即生成学习建议或每日寄语",
	Long:  "未配置 AI 或调用失败时使用内置规则生成，结果同样写入数据库。",
}

func withCore(run func(ctx context.Context, core *bootstrap.Core) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		core, err := bootstrap.NewCore(ctx, cfg)
		if err != nil {
			return err
		}
		defer core.Close()
		return run(ctx, core)
	}
}

func sourceLabel(src service.Source) string {
	if src == service.SourceAI {
		return "AI 生成"
	}
	return "内置规则"
}

var generateSuggestionCmd = &cobra.Command{
	Use:   "suggestion",
	Short: "生成一条学习建议",
	RunE: withCore(func(ctx context.Context, core *bootstrap.Core) error {
		res, err := core.Services.Suggestions.GenerateSuggestion(ctx)
		if err != nil {
			return err
		}
		color.Cyan("📊 %s（%s）", res.Suggestion.Title, sourceLabel(res.Source))
		fmt.Println("═══════════════════════════════════════")
		fmt.Println(res.Suggestion.Content)
		return nil
	}),
}

var generateQuoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "生成一条每日寄语",
	RunE: withCore(func(ctx context.Context, core *bootstrap.Core) error {
		res, err := core.Services.Suggestions.GenerateQuote(ctx)
		if err != nil {
			return err
		}
		color.Cyan("🌱 今日寄语（%s）", sourceLabel(res.Source))
		fmt.Println(res.Quote.Text)
		return nil
	}),
}

var generateDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "执行一次每日任务（建议 + 寄语）",
	RunE: withCore(func(ctx context.Context, core *bootstrap.Core) error {
		if err := core.Services.Suggestions.RunDaily(ctx); err != nil {
			return err
		}
		color.Green("✓ AI内容生成完成")
		return nil
	}),
}

func init() {
	generateCmd.AddCommand(generateSuggestionCmd, generateQuoteCmd, generateDailyCmd)
}
