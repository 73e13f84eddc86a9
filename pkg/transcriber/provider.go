// Package transcriber 驱动外部语音转文字服务商，处理重试、退避和并发分片。
package transcriber

import (
	"context"
	"io"

	"github.com/z-wentao/castscribe/pkg/models"
)

// TranscribeOptions 一次服务商请求需要的参数
type TranscribeOptions struct {
	Language string // 空字符串表示让服务商自动检测
	Prompt   string
}

// Provider 是语音转文字服务商的抽象，生产环境由 WhisperProvider 实现，
// 测试环境可以注入确定性的假实现来演练重试/错误分类逻辑。
type Provider interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string, opts TranscribeOptions) (models.RawTranscript, error)

	// Name 返回服务商/模型标识，用于渲染 JSON 输出的 metadata.model 字段
	Name() string
}

// ProviderErrorClass 服务商返回错误时的分类，决定是否重试
type ProviderErrorClass int

const (
	ClassUnknown ProviderErrorClass = iota
	ClassRateLimit
	ClassQuotaExhausted
	ClassAuthInvalid
	ClassForbidden
	// ClassConnectionReset 连接被重置/疑似限额问题，退避从 5s 起，比普通网络错误更保守
	ClassConnectionReset
	ClassNetwork
	ClassFatal
)

// ProviderError 包装服务商错误并标注分类
type ProviderError struct {
	Class ProviderErrorClass
	Err   error
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error  { return e.Err }

// Retryable 判断该分类是否值得重试
func (c ProviderErrorClass) Retryable() bool {
	switch c {
	case ClassRateLimit, ClassConnectionReset, ClassNetwork:
		return true
	default:
		return false
	}
}
