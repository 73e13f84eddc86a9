// Package core 里的 job 级工作协程：把一个排队中的 Job 依次推过
// fetch -> validate -> prepare -> transcribe -> merge -> postprocess -> render
// 七个阶段，每个阶段往任务日志里写一条记录，状态只允许向前推进。
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/z-wentao/castscribe/pkg/custodian"
	"github.com/z-wentao/castscribe/pkg/merger"
	"github.com/z-wentao/castscribe/pkg/models"
	"github.com/z-wentao/castscribe/pkg/postprocess"
	"github.com/z-wentao/castscribe/pkg/preparer"
	"github.com/z-wentao/castscribe/pkg/queue"
	"github.com/z-wentao/castscribe/pkg/renderer"
	"github.com/z-wentao/castscribe/pkg/transcriber"
	"github.com/z-wentao/castscribe/pkg/validator"
)

// runLoop 是一个 job 级工作协程的主循环：从队列阻塞取任务，跑完整条流水线，
// 再取下一个。多个 runLoop 并发运行（cfg.Transcriber.JobConcurrency 个）。
func (s *Scheduler) runLoop(id int) {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.queue.Dequeue()
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			time.Sleep(time.Second)
			continue
		}

		s.processJob(job)
	}
}

// processJob 驱动单个任务的完整生命周期，保证无论成功、失败还是 panic，
// 临时文件都会被清理，并且任务最终会进入终态。
func (s *Scheduler) processJob(job *models.Job) {
	ctx, ok := s.jobContext(job.JobID)
	if !ok {
		ctx = s.ctx
	}

	s.logs.Append(job.JobID, models.LogInfo, "start", fmt.Sprintf("开始处理任务: %s", job.Title))

	tempDir, err := os.MkdirTemp("", "castscribe-"+job.JobID+"-")
	if err != nil {
		s.fail(job, models.NewPipelineError("prepare", models.ErrInternal, "创建临时目录失败", err))
		return
	}
	cust := custodian.New(tempDir)

	defer func() {
		if r := recover(); r != nil {
			cust.Cleanup()
			s.fail(job, models.NewPipelineError("internal", models.ErrInternal, fmt.Sprintf("流水线发生 panic: %v", r), nil))
		}
	}()

	var pipelineErr error
	cust.RunWithCleanup(func() {
		pipelineErr = s.runPipeline(ctx, job, cust)
	})

	if pipelineErr != nil {
		s.fail(job, pipelineErr)
		return
	}
}

// runPipeline 执行 fetch/validate/prepare/transcribe/merge/postprocess/render，
// 任一阶段出错即中止（Preparer/Transcriber 的失败是致命的；Post-processor 的
// 失败在其自身内部被吞掉，从不返回到这里）。
func (s *Scheduler) runPipeline(ctx context.Context, job *models.Job, cust *custodian.Custodian) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.advance(job, models.StatusPreparing)
	s.logs.Append(job.JobID, models.LogInfo, "prepare", "开始获取并准备音频")

	raw, err := s.acquireAudio(ctx, job)
	if err != nil {
		return err
	}

	hint := job.SourceURL
	if hint == "" {
		hint = job.Title
	}
	ext, ok := validator.DetectExt(hint, raw)
	if !ok {
		return models.NewPipelineError("validate", models.ErrInvalidInput, "无法识别音频格式", nil)
	}

	result, err := validator.Validate(ext, raw)
	if err != nil {
		return err
	}
	if result.Warning != "" {
		s.logs.Append(job.JobID, models.LogWarn, "validate", result.Warning)
	}

	originalPath := filepath.Join(cust.RootDir(), "original"+ext)
	if err := os.WriteFile(originalPath, raw, 0o644); err != nil {
		return models.NewPipelineError("prepare", models.ErrInternal, "写入原始音频失败", err)
	}
	cust.Track(originalPath)
	original := models.AudioArtifact{Path: originalPath, SizeBytes: int64(len(raw)), Ext: ext, Role: models.RoleOriginal}

	prep := preparer.New(s.cfg.Transcriber.SegmentDuration)
	plan, created, err := prep.Prepare(ctx, original, cust.RootDir())
	for _, a := range created {
		cust.Track(a.Path)
	}
	if plan.Kind == models.PlanSegmented && len(plan.Segments) > 0 {
		cust.Track(filepath.Dir(plan.Segments[0].Path))
	}
	if err != nil {
		return err
	}

	s.logs.Append(job.JobID, models.LogInfo, "prepare", fmt.Sprintf("准备完成，共 %d 个片段", plan.TotalSegments()))

	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.advance(job, models.StatusTranscribing)
	s.logs.Append(job.JobID, models.LogInfo, "transcribe", "开始转录")

	merged, err := s.transcribe(ctx, job, plan)
	if err != nil {
		return err
	}

	if merged.Language == "" {
		if job.Params.SourceLanguage != models.AutoLanguage {
			merged.Language = job.Params.SourceLanguage
		} else {
			merged.Language = postprocess.DetectLanguage(merged.Text)
		}
	}

	if len(merged.FailedIndexes) > 0 {
		s.logs.Append(job.JobID, models.LogWarn, "transcribe",
			fmt.Sprintf("%d 个片段转录失败（已跳过）: %v", len(merged.FailedIndexes), merged.FailedIndexes))
	}
	s.logs.Append(job.JobID, models.LogSuccess, "transcribe", "转录完成")

	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.advance(job, models.StatusPostProcessing)
	processed := false
	if s.cfg.Transcriber.EnableCorrection && s.corrector != nil {
		s.logs.Append(job.JobID, models.LogInfo, "postprocess", "开始拼写/语法校正")
		merged = s.corrector.Correct(ctx, merged)
		processed = true
	}
	if job.Params.EnableSpeakerDiarization {
		s.logs.Append(job.JobID, models.LogInfo, "postprocess", "开始说话人标注（启发式）")
		merged.Segments = postprocess.LabelSpeakers(merged.Segments, job.JobID)
	}

	if err := checkCtx(ctx); err != nil {
		return err
	}

	s.advance(job, models.StatusRendering)
	formats, renderErrs := renderer.Render(merged, job.Params.OutputFormats, s.provider.Name(), processed)
	for format, ferr := range renderErrs {
		s.logs.Append(job.JobID, models.LogWarn, "render", fmt.Sprintf("格式 %s 渲染失败（已跳过）: %v", format, ferr))
	}
	if len(formats) == 0 && len(job.Params.OutputFormats) > 0 {
		return models.NewPipelineError("render", models.ErrInternal, "所有输出格式均渲染失败", nil)
	}

	s.store.Update(job.JobID, func(j *models.Job) {
		j.Advance(models.StatusDone)
		j.Formats = formats
		j.Language = merged.Language
		j.Duration = merged.DurationSec
		j.Segments = merged.Segments
		j.Progress = 100
		j.CompletedAt = time.Now().UTC()
	})
	s.logs.Append(job.JobID, models.LogSuccess, "done", "任务完成")
	s.markDone(job.JobID)
	return nil
}

// acquireAudio 要么下载 URL，要么直接使用提交时内存中的字节
func (s *Scheduler) acquireAudio(ctx context.Context, job *models.Job) ([]byte, error) {
	if job.SourceURL != "" {
		return s.fetcher.Fetch(ctx, job.SourceURL)
	}
	audio := job.Audio()
	if len(audio) == 0 {
		return nil, models.NewPipelineError("fetch", models.ErrInvalidInput, "没有可用的音频数据", nil)
	}
	return audio, nil
}

// transcribe 按 plan 的种类选择合并策略：单文件是直接透传，分片走固定偏移合并
func (s *Scheduler) transcribe(ctx context.Context, job *models.Job, plan models.Plan) (models.MergedTranscript, error) {
	opts := transcriber.TranscribeOptions{
		Prompt: transcriber.BuildPrompt(job.Params.ContentType, job.Params.Keywords),
	}
	if job.Params.SourceLanguage != models.AutoLanguage {
		opts.Language = job.Params.SourceLanguage
	}

	engine := transcriber.NewEngine(s.provider, s.cfg.Transcriber.SegmentConcurrency)
	outcomes, err := engine.TranscribePlan(ctx, plan, opts)
	if err != nil {
		return models.MergedTranscript{}, err
	}

	if plan.Kind == models.PlanSingle {
		return merger.MergeSingle(outcomes[0].Raw), nil
	}
	return merger.MergeSegmented(outcomes, plan.SegmentDurationSec), nil
}

// advance 在 Store 的互斥锁保护下推进任务状态，同时写一条日志
func (s *Scheduler) advance(job *models.Job, status models.JobStatus) {
	s.store.Update(job.JobID, func(j *models.Job) {
		j.Advance(status)
	})
	s.logs.Append(job.JobID, models.LogInfo, string(status), fmt.Sprintf("进入阶段: %s", status))
}

// fail 把任务标记为 Failed（或 Cancelled），记录分类、消息和建议，并安排日志清理
func (s *Scheduler) fail(job *models.Job, err error) {
	var pe *models.PipelineError
	class := models.ErrInternal
	msg := err.Error()
	var suggestions []string
	if errors.As(err, &pe) {
		class = pe.Class
		msg = pe.Message
		suggestions = pe.Suggestions
	}

	status := models.StatusFailed
	if class == models.ErrCancelled {
		status = models.StatusCancelled
	}

	s.store.Update(job.JobID, func(j *models.Job) {
		j.Status = status
		j.ErrClass = string(class)
		j.Error = msg
		j.Suggestions = suggestions
		j.CompletedAt = time.Now().UTC()
	})

	level := models.LogError
	if status == models.StatusCancelled {
		level = models.LogWarn
	}
	s.logs.Append(job.JobID, level, "failed", msg)
	s.markDone(job.JobID)
}

// checkCtx 把 context 取消/超时翻译成流水线统一的错误类型，用作每个阶段之间的
// 取消观察点
func checkCtx(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return models.NewPipelineError("pipeline", models.ErrTimeout, "任务超过总体时限", ctx.Err())
	default:
		return models.NewPipelineError("pipeline", models.ErrCancelled, "任务被取消", ctx.Err())
	}
}
