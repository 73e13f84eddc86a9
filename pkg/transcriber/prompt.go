package transcriber

import (
	"fmt"

	"github.com/z-wentao/castscribe/pkg/models"
)

const maxPromptLen = 400

var contentHints = map[models.ContentType]string{
	models.ContentPodcast:   "This is a podcast episode. Use natural punctuation.",
	models.ContentInterview: "This is an interview with multiple speakers.",
	models.ContentLecture:   "This is an educational lecture, prefer technical terminology.",
}

// BuildPrompt 组装发给服务商的简短提示词：内容类型提示 + 关键词
//
// 关键词优先保留，超出 400 字符时只截断提示部分，绝不向关键词文本动刀
// （除非关键词本身就超过了 400 字符）。
func BuildPrompt(contentType models.ContentType, keywords string) string {
	hint := contentHints[contentType]
	if hint == "" {
		hint = contentHints[models.ContentPodcast]
	}

	if keywords == "" {
		if len(hint) > maxPromptLen {
			return hint[:maxPromptLen]
		}
		return hint
	}

	if len(keywords) >= maxPromptLen {
		return keywords[:maxPromptLen]
	}

	prefix := fmt.Sprintf("Keywords: %s. ", keywords)
	if len(prefix) >= maxPromptLen {
		// 连提示语都放不下：宁可丢掉 "Keywords: " 标签和提示，也不截断关键词本身
		return keywords
	}

	remaining := maxPromptLen - len(prefix)
	if len(hint) > remaining {
		hint = hint[:remaining]
	}
	return prefix + hint
}
