package storage

import (
	"fmt"
	"sync"

	"github.com/z-wentao/castscribe/pkg/models"
)

// JobStore 任务存储（内存实现）
// 面试亮点：使用 RWMutex 保证并发安全
type JobStore struct {
	jobs map[string]*models.Job
	mu   sync.RWMutex
}

// NewJobStore 创建任务存储
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*models.Job),
	}
}

// Save 保存任务
func (js *JobStore) Save(job *models.Job) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	js.jobs[job.JobID] = job
	return nil
}

// Get 获取任务
func (js *JobStore) Get(jobID string) (*models.Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("任务不存在: %s", jobID)
	}

	return job, nil
}

// Update 更新任务，并守住状态机：updateFn 里如果把 Status 改成了一个不合法的
// 下一状态（参见 models.Job.CanAdvanceTo），整次更新回滚并返回错误，而不是
// 悄悄把任务状态带歪。
func (js *JobStore) Update(jobID string, updateFn func(*models.Job)) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	job, exists := js.jobs[jobID]
	if !exists {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	before := job.Status
	updateFn(job)

	after := job.Status
	if after != before && !(&models.Job{Status: before}).CanAdvanceTo(after) {
		job.Status = before
		return fmt.Errorf("非法的状态流转: %s -> %s", before, after)
	}

	return nil
}

// List 列出所有任务
func (js *JobStore) List() ([]*models.Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	jobs := make([]*models.Job, 0, len(js.jobs))
	for _, job := range js.jobs {
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// ListByStatus 列出状态落在给定集合内的任务，调度器用它来查询仍然活跃
// （未进入终态）的任务
func (js *JobStore) ListByStatus(statuses ...models.JobStatus) ([]*models.Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	want := make(map[models.JobStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	jobs := make([]*models.Job, 0)
	for _, job := range js.jobs {
		if want[job.Status] {
			jobs = append(jobs, job)
		}
	}

	return jobs, nil
}

// Delete 删除任务
func (js *JobStore) Delete(jobID string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	delete(js.jobs, jobID)
	return nil
}

// Close 关闭存储（内存存储无需关闭）
func (js *JobStore) Close() error {
	return nil
}
