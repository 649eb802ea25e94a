package service

// previewRunes 日志里生成内容的预览长度
const previewRunes = 40

// truncateRunes 按 rune 截断，超长时追加省略号
func truncateRunes(s string, max int) string {
	if max <= 0 || s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func preview(s string) string {
	return truncateRunes(s, previewRunes)
}
