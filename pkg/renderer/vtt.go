package renderer

import (
	"fmt"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
)

// RenderVTT 生成 WebVTT 字幕，纯函数，不做任何 I/O
func RenderVTT(t models.MergedTranscript) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")

	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTime(seg.Start), formatVTTTime(seg.End))
		fmt.Fprintf(&b, "%s\n\n", text)
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
