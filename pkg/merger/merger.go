// Package merger 把多个分片的转录结果合并成一份时间轴正确的完整转录。
//
// 关键设计：用固定偏移 i*SegmentDurationSec 代替累加服务商返回的 duration，
// 这样即便某个分片失败，时间轴依然单调、不漂移。
package merger

import (
	"fmt"
	"strings"

	"github.com/z-wentao/castscribe/pkg/models"
	"github.com/z-wentao/castscribe/pkg/transcriber"
)

// MergeSingle 单文件场景下直接透传，不需要偏移调整
func MergeSingle(raw models.RawTranscript) models.MergedTranscript {
	return models.MergedTranscript{
		Text:          raw.Text,
		Language:      raw.Language,
		DurationSec:   raw.DurationSec,
		Segments:      raw.Segments,
		TotalSegments: 1,
	}
}

// MergeSegmented 按固定偏移合并分片结果；失败的分片被跳过但仍占用自己的时间窗口
func MergeSegmented(outcomes []transcriber.SegmentOutcome, segmentDurationSec int) models.MergedTranscript {
	total := len(outcomes)
	merged := models.MergedTranscript{TotalSegments: total}

	var textParts []string
	var language string

	for i := 0; i < total; i++ {
		outcome := outcomes[i]
		if outcome.Err != nil {
			merged.FailedIndexes = append(merged.FailedIndexes, i)
			continue
		}

		offset := float64(i * segmentDurationSec)
		if language == "" && outcome.Raw.Language != "" {
			language = outcome.Raw.Language
		}

		shifted := make([]models.Segment, 0, len(outcome.Raw.Segments))
		for _, seg := range outcome.Raw.Segments {
			s := seg
			s.Start = clampNonNegative(seg.Start) + offset
			s.End = clampNonNegative(seg.End) + offset
			shifted = append(shifted, s)
		}
		merged.Segments = append(merged.Segments, shifted...)
		text := outcome.Raw.Text
		if total > 1 {
			text = fmt.Sprintf("=== 片段 %d ===\n%s", i, text)
		}
		textParts = append(textParts, text)
	}

	merged.Text = strings.Join(textParts, "\n\n")
	merged.Language = language
	merged.DurationSec = float64(total * segmentDurationSec)
	return merged
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
