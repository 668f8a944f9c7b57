// Package files 附件存储后端：本地文件系统（afero）或 S3 兼容对象存储.
//
// 路径一律是相对存储根的 slash 路径，例如 "2024/01j...-paper.pdf".
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// Backend 附件存储后端.
type Backend interface {
	// Exists 文件是否存在.
	Exists(ctx context.Context, name string) (bool, error)
	// MkdirAll 递归创建目录，已存在时不报错.
	MkdirAll(ctx context.Context, dir string) error
	// Open 打开文件读取.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Write 写入文件，失败时不留下部分内容.
	Write(ctx context.Context, name string, r io.Reader) error
	// Remove 删除文件，不存在时返回包装了 fs.ErrNotExist 的错误.
	Remove(ctx context.Context, name string) error
}

// ErrInvalidPath 路径越出存储根.
var ErrInvalidPath = errors.New("invalid storage path")

// CleanPath 规范化相对路径，拒绝绝对路径和 "..".
func CleanPath(name string) (string, error) {
	p := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if p == "." || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	return p, nil
}

// IsNotExist 判断后端返回的错误是否表示文件不存在.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
