package renderer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/z-wentao/castscribe/pkg/models"
)

type jsonSegment struct {
	ID    string        `json:"id"`
	Text  string        `json:"text"`
	Start float64       `json:"start"`
	End   float64       `json:"end"`
	Words []models.Word `json:"words,omitempty"`
}

type jsonMetadata struct {
	Model         string    `json:"model"`
	Timestamp     time.Time `json:"timestamp"`
	Processed     bool      `json:"processed"`
	TotalSegments int       `json:"totalSegments"`
}

type jsonOutput struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Duration float64       `json:"duration"`
	Segments []jsonSegment `json:"segments"`
	Metadata jsonMetadata  `json:"metadata"`
}

// RenderJSON 生成结构化 JSON 输出，segment.id 缺失时用 uuid 补一个稳定值
func RenderJSON(t models.MergedTranscript, model string, processed bool) (string, error) {
	segments := make([]jsonSegment, 0, len(t.Segments))
	for _, seg := range t.Segments {
		id := seg.ID
		if id == "" {
			id = uuid.NewString()
		}
		segments = append(segments, jsonSegment{
			ID: id, Text: seg.Text, Start: seg.Start, End: seg.End, Words: seg.Words,
		})
	}

	out := jsonOutput{
		Text:     t.Text,
		Language: t.Language,
		Duration: t.DurationSec,
		Segments: segments,
		Metadata: jsonMetadata{
			Model:         model,
			Timestamp:     time.Now().UTC(),
			Processed:     processed,
			TotalSegments: t.TotalSegments,
		},
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
