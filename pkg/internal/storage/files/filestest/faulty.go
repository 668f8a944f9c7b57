// Package filestest 提供测试用的可注入故障的存储后端.
package filestest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/spf13/afero"

	"github.com/yeisme/pubvault/pkg/internal/storage/files"
)

// ErrInjected 注入的故障.
var ErrInjected = errors.New("injected failure")

// Backend 包装一个真实后端，按规则注入写/删失败并记录操作顺序.
type Backend struct {
	files.Backend

	// FailWrite 返回 true 时 Write 失败.
	FailWrite func(name string) bool
	// FailRemove 返回 true 时 Remove 失败.
	FailRemove func(name string) bool

	mu  sync.Mutex
	ops []string
}

// New 基于 MemMapFs 创建，返回后端和底层文件系统.
func New(root string) (*Backend, afero.Fs) {
	mem := afero.NewMemMapFs()
	return &Backend{Backend: files.NewAferoBackend(mem, root)}, mem
}

func (b *Backend) record(op string) {
	b.mu.Lock()
	b.ops = append(b.ops, op)
	b.mu.Unlock()
}

// Ops 已执行的 write/remove 操作，形如 "write 2024/x.pdf".
func (b *Backend) Ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.ops...)
}

// Write 实现 files.Backend.
func (b *Backend) Write(ctx context.Context, name string, r io.Reader) error {
	if b.FailWrite != nil && b.FailWrite(name) {
		return ErrInjected
	}

	if err := b.Backend.Write(ctx, name, r); err != nil {
		return err
	}

	b.record("write " + name)

	return nil
}

// Remove 实现 files.Backend.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if b.FailRemove != nil && b.FailRemove(name) {
		return ErrInjected
	}

	if err := b.Backend.Remove(ctx, name); err != nil {
		return err
	}

	b.record("remove " + name)

	return nil
}
