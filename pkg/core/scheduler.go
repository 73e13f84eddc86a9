// Package core 是流水线的对外facade：SubmitFromBytes/SubmitFromUrl/AwaitResult/
// PollLogs/Cancel，以及驱动任务从排队到渲染完成的job级工作协程。
//
// NewScheduler 启动 job 级工作协程，Stop 停止它们；每个协程在 runLoop 里取任务，
// 由 processJob 驱动完整的
// fetch -> validate -> prepare -> transcribe -> merge -> postprocess -> render
// 七个阶段，每个阶段都往任务日志里写记录。
package core

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/z-wentao/castscribe/pkg/config"
	"github.com/z-wentao/castscribe/pkg/fetcher"
	"github.com/z-wentao/castscribe/pkg/joblog"
	"github.com/z-wentao/castscribe/pkg/models"
	"github.com/z-wentao/castscribe/pkg/postprocess"
	"github.com/z-wentao/castscribe/pkg/queue"
	"github.com/z-wentao/castscribe/pkg/storage"
	"github.com/z-wentao/castscribe/pkg/transcriber"
)

const defaultJobTimeout = 30 * time.Minute

// Scheduler 接收提交请求，把任务放进进程内队列，并用一个小型 job 级工作协程池
// 把每个任务跑完整条流水线。
type Scheduler struct {
	cfg       *config.Config
	queue     queue.Queue
	store     *storage.JobStore
	logs      *joblog.Store
	provider  transcriber.Provider
	corrector *postprocess.Corrector
	fetcher   *fetcher.Fetcher

	mu   sync.Mutex
	done map[string]chan struct{}

	ctxMu sync.Mutex
	ctxs  map[string]context.Context

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建调度器并启动 cfg.Transcriber.JobConcurrency 个 job 级工作协程
func NewScheduler(cfg *config.Config, provider transcriber.Provider, corrector *postprocess.Corrector) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cfg:       cfg,
		queue:     queue.NewMemoryQueue(cfg.Queue.BufferSize),
		store:     storage.NewJobStore(),
		logs:      joblog.NewStore(),
		provider:  provider,
		corrector: corrector,
		fetcher:   fetcher.New(nil),
		done:      make(map[string]chan struct{}),
		ctxs:      make(map[string]context.Context),
		ctx:       ctx,
		cancel:    cancel,
	}

	concurrency := cfg.Transcriber.JobConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	for i := 0; i < concurrency; i++ {
		go s.runLoop(i)
	}

	return s
}

// Stop 停止所有 job 级工作协程并关闭队列
func (s *Scheduler) Stop() {
	log.Println("正在停止调度器...")
	s.cancel()
	s.queue.Close()
}

// SubmitFromBytes 提交一段已经在内存中的音频字节
func (s *Scheduler) SubmitFromBytes(title string, audio []byte, params models.SubmitParams) (*models.Job, error) {
	params.Normalize()
	if len(audio) == 0 {
		return nil, models.NewPipelineError("submit", models.ErrInvalidInput, "音频数据为空", nil)
	}
	if int64(len(audio)) > models.UploadLimitBytes {
		return nil, models.NewPipelineError("submit", models.ErrInvalidInput, "上传文件超过 32MB 限制", nil)
	}
	return s.submit(title, audio, "", params)
}

// SubmitFromUrl 提交一个待下载的音频 URL
func (s *Scheduler) SubmitFromUrl(title string, url string, params models.SubmitParams) (*models.Job, error) {
	params.Normalize()
	if url == "" {
		return nil, models.NewPipelineError("submit", models.ErrInvalidInput, "URL 为空", nil)
	}
	return s.submit(title, nil, url, params)
}

func (s *Scheduler) submit(title string, audio []byte, url string, params models.SubmitParams) (*models.Job, error) {
	job := &models.Job{
		JobID:     uuid.NewString(),
		Title:     title,
		SourceURL: url,
		Params:    params,
		Status:    models.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	job.SetAudio(audio)

	jobCtx, jobCancel := context.WithTimeout(s.ctx, defaultJobTimeout)
	job.SetCancel(jobCancel)

	if err := s.store.Save(job); err != nil {
		jobCancel()
		return nil, models.NewPipelineError("submit", models.ErrInternal, "保存任务失败", err)
	}

	s.mu.Lock()
	s.done[job.JobID] = make(chan struct{})
	s.mu.Unlock()

	s.contexts(job.JobID, jobCtx)

	if err := s.queue.Enqueue(job); err != nil {
		s.store.Delete(job.JobID)
		jobCancel()
		s.dropContext(job.JobID)
		s.mu.Lock()
		delete(s.done, job.JobID)
		s.mu.Unlock()
		return nil, models.NewPipelineError("submit", models.ErrServiceBusy, "任务队列已满，请稍后重试", err)
	}

	s.logs.Append(job.JobID, models.LogInfo, "queued", "任务已加入队列")
	return job, nil
}

// contexts 记录任务专属的 context，供 job 级工作协程在处理任务时查找
func (s *Scheduler) contexts(jobID string, ctx context.Context) {
	s.ctxMu.Lock()
	s.ctxs[jobID] = ctx
	s.ctxMu.Unlock()
}

func (s *Scheduler) jobContext(jobID string) (context.Context, bool) {
	s.ctxMu.Lock()
	defer s.ctxMu.Unlock()
	ctx, ok := s.ctxs[jobID]
	return ctx, ok
}

// dropContext 移除一个任务的 context 记录，在任务提前失败（如队列已满）或
// 到达终态时调用，避免 map 无限增长
func (s *Scheduler) dropContext(jobID string) {
	s.ctxMu.Lock()
	delete(s.ctxs, jobID)
	s.ctxMu.Unlock()
}

// AwaitResult 阻塞直到任务到达终态（或调用方的 ctx 被取消），返回最终 Job 快照
func (s *Scheduler) AwaitResult(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	done, ok := s.done[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, models.NewPipelineError("await", models.ErrInvalidInput, "任务不存在", nil)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, models.NewPipelineError("await", models.ErrTimeout, "等待结果超时", ctx.Err())
	}

	return s.store.Get(jobID)
}

// GetJob 非阻塞地返回任务当前的状态快照
func (s *Scheduler) GetJob(jobID string) (*models.Job, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, models.NewPipelineError("get_job", models.ErrInvalidInput, "任务不存在", err)
	}
	return job, nil
}

// PollLogs 返回某个任务目前保留的日志窗口
func (s *Scheduler) PollLogs(jobID string) []models.JobLogEntry {
	return s.logs.Poll(jobID)
}

// ActiveJobs 返回所有尚未进入终态（done/failed/cancelled）的任务快照，
// 供状态面板或 `GET /api/jobs` 这类总览接口使用。
func (s *Scheduler) ActiveJobs() ([]*models.Job, error) {
	jobs, err := s.store.ListByStatus(
		models.StatusQueued,
		models.StatusPreparing,
		models.StatusTranscribing,
		models.StatusPostProcessing,
		models.StatusRendering,
	)
	if err != nil {
		return nil, models.NewPipelineError("list_active", models.ErrInternal, "查询活跃任务失败", err)
	}
	return jobs, nil
}

// Cancel 触发任务取消信号
func (s *Scheduler) Cancel(jobID string) error {
	job, err := s.store.Get(jobID)
	if err != nil {
		return models.NewPipelineError("cancel", models.ErrInvalidInput, "任务不存在", err)
	}
	job.Cancel()
	s.logs.Append(jobID, models.LogWarn, "cancel", "收到取消请求")
	return nil
}

// markDone 关闭任务的完成信号并安排日志 TTL 清理
func (s *Scheduler) markDone(jobID string) {
	s.mu.Lock()
	ch, ok := s.done[jobID]
	s.mu.Unlock()
	if ok {
		close(ch)
	}
	s.dropContext(jobID)
	s.logs.ExpireAfter(jobID)
}
