package service

import (
	"fmt"
	"strings"

	"github.com/mindbloom/mindbloom/internal/ai"
	"github.com/mindbloom/mindbloom/internal/schema"
)

const counselorPersona = "你是一个专业的学习心理顾问，专注于帮助用户建立健康的学习习惯和积极的学习心态。"

const quoteMaxTokens = 100

// BuildSuggestionPrompt 根据统计生成建议提示词
func BuildSuggestionPrompt(stats schema.Stats, temperature float64, maxTokens int) ai.Prompt {
	var sb strings.Builder
	sb.WriteString("请根据以下用户的学习和情绪数据，生成一份个性化的学习建议：\n\n")
	sb.WriteString("用户数据统计：\n")
	fmt.Fprintf(&sb, "- 平均焦虑程度：%.1f/10\n", stats.AvgAnxiety)
	fmt.Fprintf(&sb, "- 平均愉悦程度：%.1f/10\n", stats.AvgJoy)
	fmt.Fprintf(&sb, "- 平均任务完成率：%.0f%%\n", stats.AvgCompletionRate)
	fmt.Fprintf(&sb, "- 已追踪天数：%d天\n\n", stats.DaysTracked)
	sb.WriteString("要求：\n")
	fmt.Fprintf(&sb, "1. 建议标题为\"%s\"\n", schema.SuggestionTitle)
	sb.WriteString("2. 建议内容要具体、实用，针对用户的数据特点\n")
	sb.WriteString("3. 建议应包括学习方法、情绪管理和时间安排等方面\n")
	sb.WriteString("4. 语气要友好、鼓励，给予用户积极的心理暗示\n")
	sb.WriteString("5. 建议长度适中，不要太长\n")
	sb.WriteString("6. 避免使用专业术语，保持通俗易懂\n\n")
	sb.WriteString("请直接生成建议内容，不需要任何引言或解释。")

	return ai.Prompt{
		System:      counselorPersona,
		User:        sb.String(),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// BuildQuotePrompt 每日寄语提示词
func BuildQuotePrompt(stats schema.Stats, temperature float64) ai.Prompt {
	user := fmt.Sprintf(
		"用户最近的平均焦虑程度为 %.1f/10，平均愉悦程度为 %.1f/10，任务完成率为 %.0f%%。"+
			"请为用户写一句温暖、鼓励的每日学习寄语，不超过50个字，不要加引号，直接输出寄语本身。",
		stats.AvgAnxiety, stats.AvgJoy, stats.AvgCompletionRate,
	)
	return ai.Prompt{
		System:      counselorPersona,
		User:        user,
		Temperature: temperature,
		MaxTokens:   quoteMaxTokens,
	}
}

// FallbackSuggestion 规则生成：四个维度各取一句，结果只由 stats 决定
func FallbackSuggestion(stats schema.Stats) string {
	var parts []string

	switch {
	case stats.AvgAnxiety > 6:
		parts = append(parts, "您的焦虑程度较高，建议尝试冥想或深呼吸练习，每天10-15分钟可以有效缓解学习压力。")
	case stats.AvgAnxiety > 3:
		parts = append(parts, "您的焦虑程度适中，建议保持规律的学习计划，避免过度劳累。")
	default:
		parts = append(parts, "您的情绪状态良好，继续保持积极的学习态度！")
	}

	switch {
	case stats.AvgJoy < 4:
		parts = append(parts, "您的愉悦程度较低，建议在学习中加入一些有趣的元素，比如听喜欢的音乐或学习感兴趣的主题。")
	case stats.AvgJoy < 7:
		parts = append(parts, "您的愉悦程度适中，建议尝试新的学习方法，保持学习的新鲜感。")
	default:
		parts = append(parts, "您的愉悦程度较高，继续保持这种积极的学习状态！")
	}

	switch {
	case stats.AvgCompletionRate < 50:
		parts = append(parts, "您的任务完成率较低，建议将大任务分解为小任务，逐步完成，提高成就感。")
	case stats.AvgCompletionRate < 80:
		parts = append(parts, "您的任务完成率良好，建议设定更具挑战性的目标，进一步提升自己。")
	default:
		parts = append(parts, "您的任务完成率很高，继续保持高效的学习习惯！")
	}

	switch {
	case stats.DaysTracked < 3:
		parts = append(parts, "您刚开始使用MindBloom，建议坚持记录，一段时间后会看到明显的变化。")
	case stats.DaysTracked < 7:
		parts = append(parts, "您已经使用MindBloom一段时间，建议回顾过去的数据，总结学习规律。")
	default:
		parts = append(parts, "您已经坚持使用MindBloom一周以上，继续保持，学习习惯正在形成！")
	}

	return strings.Join(parts, "\n\n")
}

// PoolQuote 按一年中的第几天从静态池取寄语，同一天结果相同
func PoolQuote(yearDay int) string {
	n := len(schema.QuotePool)
	idx := (yearDay - 1) % n
	if idx < 0 {
		idx += n
	}
	return schema.QuotePool[idx]
}
