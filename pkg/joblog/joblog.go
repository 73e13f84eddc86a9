// Package joblog 提供每个任务的有界日志环形缓冲区，支持快照轮询和 TTL 清理。
package joblog

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/z-wentao/castscribe/pkg/models"
)

const (
	maxEntries = 500
	ttl        = 5 * time.Minute
)

// buffer 是单个任务的日志环形缓冲
type buffer struct {
	mu      sync.RWMutex
	entries []models.JobLogEntry
}

func (b *buffer) append(e models.JobLogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, e)
	if len(b.entries) > maxEntries {
		trim := len(b.entries) - maxEntries
		b.entries = append([]models.JobLogEntry(nil), b.entries[trim:]...)
	}
}

func (b *buffer) snapshot() []models.JobLogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.JobLogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Store 管理所有任务的日志缓冲区，并在任务结束后延迟清理
type Store struct {
	mu      sync.Mutex
	buffers map[string]*buffer
	timers  map[string]*time.Timer
}

// NewStore 创建一个空的日志仓库
func NewStore() *Store {
	return &Store{
		buffers: make(map[string]*buffer),
		timers:  make(map[string]*time.Timer),
	}
}

// Append 向指定任务写入一条日志，缺失的缓冲区会被懒创建
func (s *Store) Append(jobID string, level models.LogLevel, stage, message string) {
	s.mu.Lock()
	b, ok := s.buffers[jobID]
	if !ok {
		b = &buffer{}
		s.buffers[jobID] = b
	}
	s.mu.Unlock()

	b.append(models.JobLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Stage:     stage,
		Message:   message,
		Memory:    memSnapshot(),
	})
}

// Poll 返回某个任务目前保留的全部日志快照（最近的至多 500 条，更早的已被淘汰）
func (s *Store) Poll(jobID string) []models.JobLogEntry {
	s.mu.Lock()
	b, ok := s.buffers[jobID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return b.snapshot()
}

// ExpireAfter 安排一个任务的日志在 TTL 后被删除，用于任务到达终态时调用
func (s *Store) ExpireAfter(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[jobID]; ok {
		t.Stop()
	}
	s.timers[jobID] = time.AfterFunc(ttl, func() {
		s.mu.Lock()
		delete(s.buffers, jobID)
		delete(s.timers, jobID)
		s.mu.Unlock()
	})
}

// memSnapshot 采集一份进程内存快照：RSS（从系统申请的总量）、已用/总堆、以及
// 堆以外的 external 部分，全部读自 runtime.MemStats
func memSnapshot() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return fmt.Sprintf("rss=%dKB heap_used=%dKB heap_total=%dKB external=%dKB",
		m.Sys/1024, m.HeapInuse/1024, m.HeapSys/1024, m.OtherSys/1024)
}
