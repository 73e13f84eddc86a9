package transcriber

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/z-wentao/castscribe/pkg/models"
)

const maxBackoff = 30 * time.Second

// backoffBase 按错误分类决定起始退避时长：限流/连接重置（疑似限额）更谨慎，从 5s 起；
// 其余可重试的传输类错误从 2s 起
func backoffBase(class ProviderErrorClass) time.Duration {
	switch class {
	case ClassRateLimit, ClassConnectionReset:
		return 5 * time.Second
	default:
		return 2 * time.Second
	}
}

// transcribeWithRetry 对单次 Provider.Transcribe 调用做重试，audioBytes 用于在
// 每次重试时重建一个全新的 io.Reader（避免复用已经被读尽的流）
func transcribeWithRetry(ctx context.Context, p Provider, audioBytes []byte, filename string, opts TranscribeOptions, maxAttempts int) (models.RawTranscript, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		reader := io.Reader(bytes.NewReader(audioBytes))
		resp, err := p.Transcribe(ctx, reader, filename, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return models.RawTranscript{}, models.NewPipelineError("transcribe", models.ErrCancelled, "任务被取消", ctx.Err())
		}

		class, retryable := classifyErr(err)
		if !retryable {
			return models.RawTranscript{}, wrapFatal(class, err)
		}

		if attempt == maxAttempts-1 {
			break
		}

		base := backoffBase(class)
		delay := base << uint(attempt)
		if delay > maxBackoff {
			delay = maxBackoff
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return models.RawTranscript{}, models.NewPipelineError("transcribe", models.ErrCancelled, "任务被取消", ctx.Err())
		}
	}

	class, _ := classifyErr(lastErr)
	return models.RawTranscript{}, wrapFatal(class, lastErr)
}

func classifyErr(err error) (ProviderErrorClass, bool) {
	var pErr *ProviderError
	if perr, ok := err.(*ProviderError); ok {
		pErr = perr
	}
	if pErr == nil {
		return ClassNetwork, true
	}
	return pErr.Class, pErr.Class.Retryable()
}

func wrapFatal(class ProviderErrorClass, err error) error {
	switch class {
	case ClassQuotaExhausted:
		return models.NewPipelineError("transcribe", models.ErrProviderQuotaExhausted, "服务商额度已用尽", err,
			"请检查账户余额/额度")
	case ClassAuthInvalid:
		return models.NewPipelineError("transcribe", models.ErrProviderAuthFailed, "服务商鉴权失败", err,
			"请检查 API Key 是否正确")
	case ClassForbidden:
		return models.NewPipelineError("transcribe", models.ErrProviderRequestInvalid, "服务商拒绝请求", err)
	case ClassRateLimit:
		return models.NewPipelineError("transcribe", models.ErrProviderRateLimited, "服务商限流，重试次数已耗尽", err)
	case ClassNetwork:
		return models.NewPipelineError("transcribe", models.ErrProviderTransientFailed, "网络错误，重试次数已耗尽", err)
	default:
		return models.NewPipelineError("transcribe", models.ErrProviderTransientFailed, "服务商调用失败", err)
	}
}
