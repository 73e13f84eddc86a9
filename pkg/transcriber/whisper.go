package transcriber

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	openai "github.com/sashabaranov/go-openai"

	"github.com/z-wentao/castscribe/pkg/models"
)

// WhisperProvider 通过 sashabaranov/go-openai 调用 Whisper 转录接口
type WhisperProvider struct {
	client *openai.Client
	model  string
}

// NewWhisperProvider 创建基于 go-openai 的 Provider 实现
func NewWhisperProvider(apiKey string) *WhisperProvider {
	return &WhisperProvider{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

// Name 返回底层模型标识
func (w *WhisperProvider) Name() string { return w.model }

// Transcribe 调用 Whisper 接口，请求 verbose_json 和单词级时间戳；结果只保留文本、
// 时长、语言以及各分段的 start/end/text，响应里的单词时间戳不会写入 Segment.Words
func (w *WhisperProvider) Transcribe(ctx context.Context, audio io.Reader, filename string, opts TranscribeOptions) (models.RawTranscript, error) {
	req := openai.AudioRequest{
		Model:                  w.model,
		Reader:                 audio,
		FilePath:               filename,
		Prompt:                 opts.Prompt,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularityWord},
	}
	if opts.Language != "" {
		req.Language = opts.Language
	}

	resp, err := w.client.CreateTranscription(ctx, req)
	if err != nil {
		return models.RawTranscript{}, classify(err)
	}

	out := models.RawTranscript{
		Text:        resp.Text,
		Language:    resp.Language,
		DurationSec: float64(resp.Duration),
	}
	for _, seg := range resp.Segments {
		out.Segments = append(out.Segments, models.Segment{
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return out, nil
}

// classify 把 go-openai 返回的错误映射到服务商错误分类表
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &ProviderError{Class: ClassRateLimit, Err: err}
		case http.StatusPaymentRequired:
			return &ProviderError{Class: ClassQuotaExhausted, Err: err}
		case http.StatusUnauthorized:
			return &ProviderError{Class: ClassAuthInvalid, Err: err}
		case http.StatusForbidden:
			return &ProviderError{Class: ClassForbidden, Err: err}
		default:
			return &ProviderError{Class: ClassFatal, Err: err}
		}
	}

	if isConnectionReset(err) {
		return &ProviderError{Class: ClassConnectionReset, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Class: ClassNetwork, Err: err}
	}

	return &ProviderError{Class: ClassNetwork, Err: err}
}

// isConnectionReset 识别 ECONNRESET，无论它是裸的 syscall.Errno 还是被
// net.OpError/url.Error 层层包裹
func isConnectionReset(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNRESET)
}
