package renderer

import (
	"fmt"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
)

// RenderSRT 生成 SRT 字幕，纯函数，不做任何 I/O
func RenderSRT(t models.MergedTranscript) string {
	var b strings.Builder
	index := 1
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%d\n", index)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTime(seg.Start), formatSRTTime(seg.End))
		fmt.Fprintf(&b, "%s\n\n", text)
		index++
	}
	return strings.TrimRight(b.String(), "\n")
}
