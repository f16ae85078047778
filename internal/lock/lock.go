// Package lock 提供按资源名区分的排他锁。
// 常规场景下是进程内的命名互斥锁；开启跨进程模式后，
// 同时在数据目录下维护锁文件，保证多进程写入安全。
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/feedhub/internal/feederr"
)

// 跨进程模式下锁文件的轮询间隔。
const filePollInterval = 50 * time.Millisecond

// Manager 管理一组命名资源锁。不同资源的锁相互独立，
// 并发抓取不同订阅源时不会在锁上互相等待。
type Manager struct {
	mu           sync.Mutex
	sems         map[string]chan struct{}
	root         string
	crossProcess bool
}

// NewManager 创建锁管理器。root 为数据根目录，
// crossProcess 为 true 时额外使用锁文件实现跨进程互斥。
func NewManager(root string, crossProcess bool) *Manager {
	return &Manager{
		sems:         make(map[string]chan struct{}),
		root:         root,
		crossProcess: crossProcess,
	}
}

// WithLock 在持有 resource 对应的排他锁期间执行 fn。
// 无论 fn 正常返回、出错还是 panic，锁都会被释放。
// 超时未获取到锁时返回 feederr.ErrLockTimeout。
func (m *Manager) WithLock(resource string, timeout time.Duration, fn func() error) error {
	sem := m.sem(resource)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case sem <- struct{}{}:
	case <-deadline.C:
		return fmt.Errorf("资源 %s: %w", resource, feederr.ErrLockTimeout)
	}
	defer func() { <-sem }()

	if m.crossProcess {
		release, err := m.acquireFile(resource, timeout)
		if err != nil {
			return err
		}
		defer release()
	}

	return fn()
}

// sem 返回 resource 对应的容量为 1 的信号量，按需创建。
func (m *Manager) sem(resource string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sems[resource]
	if !ok {
		s = make(chan struct{}, 1)
		m.sems[resource] = s
	}
	return s
}

// acquireFile 以 O_EXCL 创建锁文件实现跨进程互斥，返回释放函数。
func (m *Manager) acquireFile(resource string, timeout time.Duration) (func(), error) {
	path := m.lockFilePath(resource)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &feederr.StorageError{Path: path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, &feederr.StorageError{Path: path, Err: err}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("资源 %s (锁文件 %s): %w", resource, path, feederr.ErrLockTimeout)
		}
		time.Sleep(filePollInterval)
	}
}

// lockFilePath 将资源名映射为数据目录下的锁文件路径。
// "feeds" → <root>/.feeds.lock；"feed:<id>" → <root>/<id>/.items.lock。
func (m *Manager) lockFilePath(resource string) string {
	if id, ok := strings.CutPrefix(resource, "feed:"); ok {
		return filepath.Join(m.root, id, ".items.lock")
	}
	return filepath.Join(m.root, "."+resource+".lock")
}
