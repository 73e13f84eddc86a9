package models

import (
	"context"
	"time"
)

// JobStatus 任务状态，只能向前推进，不允许回退
type JobStatus string

const (
	StatusQueued         JobStatus = "queued"
	StatusPreparing      JobStatus = "preparing"
	StatusTranscribing   JobStatus = "transcribing"
	StatusPostProcessing JobStatus = "post_processing"
	StatusRendering      JobStatus = "rendering"
	StatusDone           JobStatus = "done"
	StatusFailed         JobStatus = "failed"
	StatusCancelled      JobStatus = "cancelled"
)

// forwardTransitions 合法的状态迁移表
var forwardTransitions = map[JobStatus]map[JobStatus]bool{
	StatusQueued:         {StatusPreparing: true, StatusFailed: true, StatusCancelled: true},
	StatusPreparing:      {StatusTranscribing: true, StatusFailed: true, StatusCancelled: true},
	StatusTranscribing:   {StatusPostProcessing: true, StatusFailed: true, StatusCancelled: true},
	StatusPostProcessing: {StatusRendering: true, StatusFailed: true, StatusCancelled: true},
	StatusRendering:      {StatusDone: true, StatusFailed: true, StatusCancelled: true},
}

// ContentType 用于挑选转换提示词模板
type ContentType string

const (
	ContentPodcast   ContentType = "podcast"
	ContentInterview ContentType = "interview"
	ContentLecture   ContentType = "lecture"
)

// AutoLanguage 表示由服务商自动检测语言
const AutoLanguage = "auto"

// SubmitParams 提交任务时的可选参数
type SubmitParams struct {
	OutputFormats            []string    `json:"output_formats"`
	ContentType              ContentType `json:"content_type"`
	SourceLanguage           string      `json:"source_language"`
	Keywords                 string      `json:"keywords"`
	EnableSpeakerDiarization bool        `json:"enable_speaker_diarization"`
}

// Normalize 填充默认值，避免后续阶段反复判空
func (p *SubmitParams) Normalize() {
	if len(p.OutputFormats) == 0 {
		p.OutputFormats = []string{"txt"}
	}
	if p.ContentType == "" {
		p.ContentType = ContentPodcast
	}
	if p.SourceLanguage == "" {
		p.SourceLanguage = AutoLanguage
	}
	if len(p.Keywords) > 400 {
		p.Keywords = p.Keywords[:400]
	}
}

// Job 一次转换请求的完整状态
type Job struct {
	JobID       string            `json:"job_id"`
	Title       string            `json:"title"`
	SourceURL   string            `json:"source_url,omitempty"`
	Params      SubmitParams      `json:"params"`
	Status      JobStatus         `json:"status"`
	Progress    int               `json:"progress"`
	Formats     map[string]string `json:"formats,omitempty"`
	Language    string            `json:"language,omitempty"`
	Duration    float64           `json:"duration,omitempty"`
	Segments    []Segment         `json:"segments,omitempty"`
	ErrClass    string            `json:"error_class,omitempty"`
	Error       string            `json:"error,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt time.Time         `json:"completed_at"`

	// audio 是提交时的原始字节，只在 job-worker 内部使用，不序列化
	audio  []byte         `json:"-"`
	cancel context.CancelFunc `json:"-"`
}

// SetAudio 由调度器在入队前写入原始音频字节
func (j *Job) SetAudio(b []byte) { j.audio = b }

// Audio 返回提交时的原始音频字节
func (j *Job) Audio() []byte { return j.audio }

// SetCancel 注入取消函数，仅供调度器调用
func (j *Job) SetCancel(fn context.CancelFunc) { j.cancel = fn }

// Cancel 触发该任务的取消信号
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// CanAdvanceTo 判断状态迁移是否合法
func (j *Job) CanAdvanceTo(next JobStatus) bool {
	allowed, ok := forwardTransitions[j.Status]
	if !ok {
		return false
	}
	return allowed[next]
}

// Advance 执行一次合法的状态迁移；非法迁移返回 false 且不修改状态
func (j *Job) Advance(next JobStatus) bool {
	if !j.CanAdvanceTo(next) {
		return false
	}
	j.Status = next
	return true
}
