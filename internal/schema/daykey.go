package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinScore = 1
	MaxScore = 10

	dayKeyLayout = "2006-1-2"
)

// ErrInvalid 记录字段缺失或不合法
var ErrInvalid = errors.New("记录字段不合法")

// DayKey 生成不补零的本地日期键，例如 2025-3-7
func DayKey(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

// ParseDayKey 解析规范日期键（本地时区当天零点）
// 补零或带空白的写法视为不合法，同一天只能有一种键
func ParseDayKey(key string) (time.Time, error) {
	day, err := parseLooseDayKey(key)
	if err != nil {
		return time.Time{}, err
	}
	if DayKey(day) != key {
		return time.Time{}, fmt.Errorf("日期键 %q 不是规范写法 %q", key, DayKey(day))
	}
	return day, nil
}

// CanonicalDayKey 接受 2025-03-07 这类补零写法，返回规范键 2025-3-7
func CanonicalDayKey(key string) (string, error) {
	day, err := parseLooseDayKey(key)
	if err != nil {
		return "", err
	}
	return DayKey(day), nil
}

func parseLooseDayKey(key string) (time.Time, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, errors.New("日期键为空")
	}
	return time.ParseInLocation(dayKeyLayout, key, time.Local)
}
