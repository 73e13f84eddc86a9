package queue

import (
	"github.com/z-wentao/castscribe/pkg/models"
)

// MemoryQueue 基于 Channel 的内存队列实现
// 面试亮点：展示 Go Channel 的使用，进程内 FIFO，满了立刻报错不阻塞提交者
type MemoryQueue struct {
	queue chan *models.Job
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	return &MemoryQueue{
		queue: make(chan *models.Job, bufferSize),
	}
}

// Enqueue 将任务加入队列
func (mq *MemoryQueue) Enqueue(job *models.Job) error {
	select {
	case mq.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue 从队列取出任务（阻塞等待）
func (mq *MemoryQueue) Dequeue() (*models.Job, error) {
	job, ok := <-mq.queue
	if !ok {
		return nil, ErrQueueClosed
	}
	return job, nil
}

// Close 关闭队列
func (mq *MemoryQueue) Close() error {
	close(mq.queue)
	return nil
}
