package files

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	dirPerm  = 0o755
	tmpGlob  = ".upload-*"
	fileMode = 0o644
)

// AferoBackend 基于 afero.Fs 的后端，生产用 OsFs，测试用 MemMapFs.
type AferoBackend struct {
	fs   afero.Fs
	root string
}

// NewAferoBackend 创建本地后端，root 为存储根目录.
func NewAferoBackend(fsys afero.Fs, root string) *AferoBackend {
	return &AferoBackend{fs: fsys, root: root}
}

// Fs 底层文件系统.
func (b *AferoBackend) Fs() afero.Fs {
	return b.fs
}

func (b *AferoBackend) full(name string) (string, error) {
	p, err := CleanPath(name)
	if err != nil {
		return "", err
	}

	return filepath.Join(b.root, filepath.FromSlash(p)), nil
}

// Exists 实现 Backend.
func (b *AferoBackend) Exists(_ context.Context, name string) (bool, error) {
	full, err := b.full(name)
	if err != nil {
		return false, err
	}

	return afero.Exists(b.fs, full)
}

// MkdirAll 实现 Backend.
func (b *AferoBackend) MkdirAll(_ context.Context, dir string) error {
	full, err := b.full(dir)
	if err != nil {
		return err
	}

	return b.fs.MkdirAll(full, dirPerm)
}

// Open 实现 Backend.
func (b *AferoBackend) Open(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := b.full(name)
	if err != nil {
		return nil, err
	}

	return b.fs.Open(full)
}

// Write 先写同目录临时文件再 rename.
func (b *AferoBackend) Write(ctx context.Context, name string, r io.Reader) error {
	full, err := b.full(name)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := afero.TempFile(b.fs, filepath.Dir(full), tmpGlob)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)

		return fmt.Errorf("write %s: %w", path.Base(name), err)
	}

	if err := tmp.Close(); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path.Base(name), err)
	}

	if err := b.fs.Rename(tmpName, full); err != nil {
		_ = b.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path.Base(name), err)
	}

	_ = b.fs.Chmod(full, fileMode)

	return nil
}

// Remove 实现 Backend.
func (b *AferoBackend) Remove(_ context.Context, name string) error {
	full, err := b.full(name)
	if err != nil {
		return err
	}

	return b.fs.Remove(full)
}
