// Package custodian 保证一次任务产生的所有临时文件，无论成功、失败还是 panic，
// 最终都会被清理掉。
package custodian

import (
	"log"
	"os"
	"sync"
)

// Custodian 记录某个任务专属临时目录内产生的所有中间产物
type Custodian struct {
	mu      sync.Mutex
	rootDir string
	paths   []string
}

// New 创建一个绑定到 rootDir 的管理器；rootDir 通常是 os.MkdirTemp 的结果
func New(rootDir string) *Custodian {
	return &Custodian{rootDir: rootDir}
}

// RootDir 返回该任务的专属临时目录
func (c *Custodian) RootDir() string {
	return c.rootDir
}

// Track 记录一个需要在清理时删除的文件或目录路径
//
// 不仅追踪最终被 Plan 引用的产物，也追踪被放弃的中间产物（例如转码成功但
// 分片失败的那个转码文件），保证它们同样会被清理。
func (c *Custodian) Track(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

// Cleanup 删除整个任务临时目录；应当用 defer + recover 包裹调用方，确保即便
// panic 也会执行到这里。删除单个文件失败是 best-effort，不会中止清理流程。
func (c *Custodian) Cleanup() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ custodian 清理过程中发生 panic: %v", r)
		}
	}()

	c.mu.Lock()
	paths := append([]string(nil), c.paths...)
	root := c.rootDir
	c.mu.Unlock()

	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Printf("⚠️ 清理中间产物失败 %s: %v", p, err)
		}
	}

	if root != "" {
		if err := os.RemoveAll(root); err != nil {
			log.Printf("⚠️ 清理任务临时目录失败 %s: %v", root, err)
		}
	}
}

// RunWithCleanup 执行 fn，无论正常返回还是 panic，Cleanup 都会在返回前跑完
// （defer 在 panic 展开栈的过程中依然会执行）。不吞掉 panic，调用方的上层
// recover 仍然能观察到它。
func (c *Custodian) RunWithCleanup(fn func()) {
	defer c.Cleanup()
	fn()
}
