package storage

import "github.com/z-wentao/castscribe/pkg/models"

// Store 任务存储接口；只保存进程存活期间可寻址的 Job，不做跨重启持久化
type Store interface {
	// Save 保存任务
	Save(job *models.Job) error

	// Get 获取任务
	Get(jobID string) (*models.Job, error)

	// Update 更新任务（使用回调函数模式）
	Update(jobID string, updateFn func(*models.Job)) error

	// List 列出所有任务
	List() ([]*models.Job, error)

	// Delete 删除任务
	Delete(jobID string) error

	// Close 关闭存储连接
	Close() error
}
