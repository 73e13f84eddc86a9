package transcriber

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/z-wentao/castscribe/pkg/models"
)

const (
	defaultConcurrency      = 3
	singleFileMaxAttempts   = 5
	segmentMaxAttemptsEach  = 3
)

// Engine 驱动一个 Plan 的转录：单文件走一次带重试的请求，分片走有界并发池
//
// 面试亮点：goroutine pool + channel fan-out/fan-in + WaitGroup，与
// 顺序无关的完成、按索引顺序的派发和合并。
type Engine struct {
	provider    Provider
	concurrency int
}

// NewEngine 创建转录引擎，concurrency<=0 时使用默认并发数 3
func NewEngine(provider Provider, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{provider: provider, concurrency: concurrency}
}

// segmentTask 一个待转录的分片任务
type segmentTask struct {
	index    int
	artifact models.AudioArtifact
}

// SegmentOutcome 一个分片任务的结果（可能失败）
type SegmentOutcome struct {
	Index int
	Raw   models.RawTranscript
	Err   error
}

// TranscribePlan 驱动 plan 中的所有分片（或单文件），返回按索引排好序的结果切片。
// 某个分片重试耗尽后不会中止整个 plan：对应位置的 err 非空，调用方（merger）
// 负责跳过失败分片但仍按固定偏移推进时间轴。
func (e *Engine) TranscribePlan(ctx context.Context, plan models.Plan, opts TranscribeOptions) ([]SegmentOutcome, error) {
	if plan.Kind == models.PlanSingle {
		data, err := os.ReadFile(plan.Single.Path)
		if err != nil {
			return nil, models.NewPipelineError("transcribe", models.ErrInternal, "读取音频文件失败", err)
		}
		raw, err := transcribeWithRetry(ctx, e.provider, data, plan.Single.Path, opts, singleFileMaxAttempts)
		if err != nil {
			return nil, err
		}
		return []SegmentOutcome{{Index: 0, Raw: raw}}, nil
	}

	total := len(plan.Segments)
	taskCh := make(chan segmentTask, total)
	resultCh := make(chan SegmentOutcome, total)

	var wg sync.WaitGroup
	for w := 0; w < e.concurrency; w++ {
		wg.Add(1)
		go e.worker(ctx, w, taskCh, resultCh, opts, &wg)
	}

	for i, seg := range plan.Segments {
		taskCh <- segmentTask{index: i, artifact: seg}
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]SegmentOutcome, total)
	completed := 0
	for res := range resultCh {
		outcomes[res.Index] = res
		completed++
		if res.Err != nil {
			log.Printf("❌ 片段 #%d 转录失败（已耗尽重试）: %v", res.Index, res.Err)
		} else {
			log.Printf("✅ 片段 #%d 完成 | 进度 %d/%d", res.Index, completed, total)
		}
	}

	return outcomes, nil
}

func (e *Engine) worker(ctx context.Context, id int, tasks <-chan segmentTask, results chan<- SegmentOutcome, opts TranscribeOptions, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range tasks {
		select {
		case <-ctx.Done():
			results <- SegmentOutcome{Index: task.index, Err: models.NewPipelineError("transcribe", models.ErrCancelled, "任务被取消", ctx.Err())}
			continue
		default:
		}

		data, err := os.ReadFile(task.artifact.Path)
		if err != nil {
			results <- SegmentOutcome{Index: task.index, Err: err}
			continue
		}

		raw, err := transcribeWithRetry(ctx, e.provider, data, task.artifact.Path, opts, segmentMaxAttemptsEach)
		results <- SegmentOutcome{Index: task.index, Raw: raw, Err: err}
	}
}
