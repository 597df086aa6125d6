package window

import (
	"fmt"
	"strconv"
	"strings"
)

// 日历月名（窗口解析与标签格式化的基准顺序）
var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthIndex 返回月名的日历序号（1..12）
// 接受完整月名或 3 字母缩写，不区分大小写
func MonthIndex(name string) (int, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return 0, false
	}
	for i, m := range monthNames {
		lower := strings.ToLower(m)
		if n == lower || (len(n) == 3 && n == lower[:3]) {
			return i + 1, true
		}
	}
	return 0, false
}

// MonthName 返回日历序号对应的完整月名
func MonthName(index int) (string, bool) {
	if index < 1 || index > 12 {
		return "", false
	}
	return monthNames[index-1], true
}

// FormatLabel 格式化月份标签，如 ("June", 2025) → "Jun-25"
func FormatLabel(monthName string, year int) string {
	name := strings.TrimSpace(monthName)
	abbrev := name
	if len(name) > 3 {
		abbrev = name[:3]
	}
	return fmt.Sprintf("%s-%02d", abbrev, year%100)
}

// ParseLabel 解析月份标签，如 "Jun-25" → ("June", 2025)
func ParseLabel(label string) (string, int, error) {
	parts := strings.SplitN(strings.TrimSpace(label), "-", 2)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("月份标签格式非法: %q", label)
	}
	idx, ok := MonthIndex(parts[0])
	if !ok {
		return "", 0, fmt.Errorf("月份标签格式非法: %q (未知月名 %q)", label, parts[0])
	}
	yy, err := strconv.Atoi(parts[1])
	if err != nil || yy < 0 || yy > 99 {
		return "", 0, fmt.Errorf("月份标签格式非法: %q (年份 %q)", label, parts[1])
	}
	return monthNames[idx-1], 2000 + yy, nil
}
