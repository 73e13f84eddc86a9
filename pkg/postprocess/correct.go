package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/z-wentao/castscribe/pkg/models"
)

const maxSegmentsInPrompt = 50

// correctionResult 是期望从 LLM 得到的 JSON 结构
type correctionResult struct {
	CorrectedText     string              `json:"correctedText"`
	CorrectedSegments []correctedSegment  `json:"correctedSegments"`
	Corrections       []string            `json:"corrections"`
	HasErrors         bool                `json:"hasErrors"`
}

type correctedSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Corrector 用 LLM 对转录文本做一遍拼写/语法校正，失败时静默回退到原文
type Corrector struct {
	client *openai.Client
	model  string
}

// NewCorrector 创建校正器
func NewCorrector(apiKey string) *Corrector {
	return &Corrector{client: openai.NewClient(apiKey), model: openai.GPT4oMini}
}

// Correct 尝试校正文本和分段文本；任何失败都吞掉并返回原始 transcript，不向上抛错
func (c *Corrector) Correct(ctx context.Context, transcript models.MergedTranscript) models.MergedTranscript {
	if transcript.Text == "" {
		return transcript
	}

	systemPrompt := fmt.Sprintf(
		"You proofread machine-generated transcripts in %s. Fix spelling, punctuation and obvious "+
			"mis-transcriptions. Never change the meaning, never invent content, never translate. "+
			"Respond with JSON only.", languageName(transcript.Language))

	userPrompt := buildCorrectionPrompt(transcript)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		log.Printf("⚠️ 拼写校正调用失败，使用原始转录: %v", err)
		return transcript
	}
	if len(resp.Choices) == 0 {
		log.Printf("⚠️ 拼写校正未返回结果，使用原始转录")
		return transcript
	}

	content := resp.Choices[0].Message.Content
	var result correctionResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		extracted := extractJSONFromMarkdown(content)
		if err := json.Unmarshal([]byte(extracted), &result); err != nil {
			log.Printf("⚠️ 拼写校正结果解析失败，使用原始转录: %v", err)
			return transcript
		}
	}

	if result.CorrectedText == "" {
		return transcript
	}

	out := transcript
	out.Text = result.CorrectedText
	out.Segments = mergeCorrectedSegments(transcript.Segments, result.CorrectedSegments)
	return out
}

// mergeCorrectedSegments 按位置把校正后的文本写回原 segment，start/end 保持不变
func mergeCorrectedSegments(original []models.Segment, corrected []correctedSegment) []models.Segment {
	out := make([]models.Segment, len(original))
	copy(out, original)
	for i := range out {
		if i < len(corrected) && corrected[i].Text != "" {
			out[i].Text = corrected[i].Text
		}
	}
	return out
}

func buildCorrectionPrompt(t models.MergedTranscript) string {
	var b strings.Builder
	b.WriteString("Full transcript:\n\"\"\"\n")
	b.WriteString(t.Text)
	b.WriteString("\n\"\"\"\n\n")

	limit := len(t.Segments)
	if limit > maxSegmentsInPrompt {
		limit = maxSegmentsInPrompt
	}
	if limit > 0 {
		b.WriteString("Timed segments (start/end in seconds):\n")
		for i := 0; i < limit; i++ {
			seg := t.Segments[i]
			fmt.Fprintf(&b, "[%.2f - %.2f] %s\n", seg.Start, seg.End, seg.Text)
		}
	}

	b.WriteString("\nReturn JSON: {\"correctedText\": string, \"correctedSegments\": " +
		"[{\"start\": number, \"end\": number, \"text\": string}], \"corrections\": [string], " +
		"\"hasErrors\": bool}. correctedSegments must preserve start/end exactly and be in the same order.")
	return b.String()
}

func languageName(code string) string {
	switch code {
	case "zh":
		return "Chinese"
	case "":
		return "the detected language"
	default:
		return code
	}
}

// extractJSONFromMarkdown 去掉 ```json ... ``` 包裹，容忍模型偏离纯 JSON 输出的情况
func extractJSONFromMarkdown(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}
