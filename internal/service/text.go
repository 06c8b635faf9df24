package service

import "unicode/utf8"

// truncateRunes 按字符截断到最多 n 个，避免切断多字节 UTF-8 字符。
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
