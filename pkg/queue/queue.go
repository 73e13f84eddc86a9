package queue

import "github.com/z-wentao/castscribe/pkg/models"

// ErrQueueFull 队列已满时返回，调用方应映射为 ServiceBusy 错误分类
var ErrQueueFull = &queueError{"队列已满"}

// ErrQueueClosed 队列已关闭时返回
var ErrQueueClosed = &queueError{"队列已关闭"}

type queueError struct{ msg string }

func (e *queueError) Error() string { return e.msg }

// Queue 任务队列接口，本项目只有进程内实现，保留接口是为了不把调用方锁死在
// 某一种具体实现上
type Queue interface {
	// Enqueue 将任务加入队列；队列满时立刻返回 ErrQueueFull，不阻塞提交者
	Enqueue(job *models.Job) error

	// Dequeue 从队列取出任务（阻塞）
	Dequeue() (*models.Job, error)

	// Close 关闭队列
	Close() error
}
