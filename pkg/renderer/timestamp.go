package renderer

import "fmt"

// formatSRTTime 秒数 -> SRT 时间戳 (hh:mm:ss,mmm)
func formatSRTTime(seconds float64) string {
	h, m, s, ms := splitSeconds(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatVTTTime 秒数 -> WebVTT 时间戳 (hh:mm:ss.mmm)
func formatVTTTime(seconds float64) string {
	h, m, s, ms := splitSeconds(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// formatClockTime 秒数 -> mm:ss，用于 TXT 渲染
func formatClockTime(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func splitSeconds(seconds float64) (h, m, s, ms int) {
	total := int(seconds)
	h = total / 3600
	m = (total % 3600) / 60
	s = total % 60
	ms = int((seconds - float64(total)) * 1000)
	return
}
