package renderer

import (
	"fmt"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
)

// RenderTXT 生成纯文本转录稿；多分片时在每个分片前插入 "=== 片段 N ===" 分隔符。
//
// 分隔符只属于 TXT，SRT/VTT 不带这个约定。
func RenderTXT(t models.MergedTranscript) string {
	if len(t.Segments) == 0 {
		return t.Text
	}

	var b strings.Builder
	for i, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if t.TotalSegments > 1 && isSegmentBoundary(t.Segments, i) {
			fmt.Fprintf(&b, "=== 片段 %d ===\n", segmentIndexFor(t.Segments, i, t.TotalSegments))
		}
		fmt.Fprintf(&b, "[%s - %s] %s\n\n", formatClockTime(seg.Start), formatClockTime(seg.End), text)
	}

	return strings.TrimRight(b.String(), "\n")
}

// isSegmentBoundary 粗略地用固定分片时长判断 i 是否是新分片的第一条记录
func isSegmentBoundary(segments []models.Segment, i int) bool {
	if i == 0 {
		return true
	}
	return int(segments[i].Start)/models.SegmentDurationSec != int(segments[i-1].Start)/models.SegmentDurationSec
}

func segmentIndexFor(segments []models.Segment, i int, total int) int {
	idx := int(segments[i].Start) / models.SegmentDurationSec
	if idx >= total {
		idx = total - 1
	}
	return idx
}
