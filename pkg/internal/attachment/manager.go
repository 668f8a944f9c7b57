// Package attachment 管理出版物附件（PDF、BibTeX）的存储与删除.
//
// 存储布局为 <存储根>/<年份>/<清洗后的文件名>，公开路径 <publicBase>/<年份>/<文件名> 与之对应.
// 公开路径最长 MaxPathLength 个字符，与 pdf_path/bib_path 列宽一致.
package attachment

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yeisme/pubvault/pkg/internal/filename"
	"github.com/yeisme/pubvault/pkg/internal/storage/files"
	"github.com/yeisme/pubvault/pkg/internal/types"
	nlog "github.com/yeisme/pubvault/pkg/log"
)

const (
	// MaxPathLength 公开路径上限.
	MaxPathLength = 255
	// MinFilenameBudget 文件名预算下限.
	MinFilenameBudget = 50
	// TrimStep 路径超长时每次从基础名末尾裁掉的字符数.
	TrimStep = 5
)

// StoredFile 已持久化的附件.
type StoredFile struct {
	Name       string // 存储文件名
	Path       string // 相对存储根的路径
	PublicPath string // 写入数据库的公开路径
}

// Manager 附件管理器.
type Manager struct {
	backend    files.Backend
	publicBase string
}

// NewManager 创建 Manager. publicBase 形如 "/uploads"，末尾斜杠会被去掉.
func NewManager(backend files.Backend, publicBase string) *Manager {
	return &Manager{backend: backend, publicBase: strings.TrimRight(publicBase, "/")}
}

func attachErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrAttachment, fmt.Sprintf(format, args...))
}

// PublicDir 某年份附件的公开目录前缀，以 "/" 结尾.
func (m *Manager) PublicDir(year int) string {
	return m.publicBase + "/" + strconv.Itoa(year) + "/"
}

// FilenameBudget 某年份下文件名可用的字符数.
func (m *Manager) FilenameBudget(year int) int {
	n := MaxPathLength - utf8.RuneCountInString(m.PublicDir(year))
	if n < MinFilenameBudget {
		n = MinFilenameBudget
	}

	return n
}

// Store 存储单个文件.
func (m *Manager) Store(ctx context.Context, src types.FileSource, year int, prefix string) (StoredFile, error) {
	names, err := m.plan(year, prefix, src.Name)
	if err != nil {
		return StoredFile{}, err
	}

	if err := m.backend.MkdirAll(ctx, strconv.Itoa(year)); err != nil {
		return StoredFile{}, attachErr("create directory %d: %v", year, err)
	}

	return m.put(ctx, src, year, names[0])
}

// StorePair 用同一前缀存储 PDF 与 BibTeX. BibTeX 失败时删除已写入的 PDF，
// 返回错误即表示两个文件都没有留下.
func (m *Manager) StorePair(ctx context.Context, pdf, bib types.FileSource, year int, prefix string) (StoredFile, StoredFile, error) {
	names, err := m.plan(year, prefix, pdf.Name, bib.Name)
	if err != nil {
		return StoredFile{}, StoredFile{}, err
	}

	if err := m.backend.MkdirAll(ctx, strconv.Itoa(year)); err != nil {
		return StoredFile{}, StoredFile{}, attachErr("create directory %d: %v", year, err)
	}

	pdfFile, err := m.put(ctx, pdf, year, names[0])
	if err != nil {
		return StoredFile{}, StoredFile{}, err
	}

	bibFile, err := m.put(ctx, bib, year, names[1])
	if err != nil {
		if rmErr := m.backend.Remove(ctx, pdfFile.Path); rmErr != nil && !files.IsNotExist(rmErr) {
			nlog.Logger().Error().Err(rmErr).Str("path", pdfFile.Path).Msg("rollback pdf failed")
		}

		return StoredFile{}, StoredFile{}, err
	}

	return pdfFile, bibFile, nil
}

// plan 生成文件名，公开路径仍超长时从各基础名末尾按 TrimStep 裁剪.
func (m *Manager) plan(year int, prefix string, originals ...string) ([]string, error) {
	dir := m.PublicDir(year)
	budget := m.FilenameBudget(year)

	heads := make([][]rune, len(originals))
	exts := make([]string, len(originals))
	keep := make([]int, len(originals))

	for i, orig := range originals {
		name := filename.Sanitize(orig, prefix, budget)

		_, ext := filename.Split(name)
		if ext != "" {
			exts[i] = "." + ext
		}

		head := strings.TrimSuffix(name, exts[i])
		heads[i] = []rune(head)

		// 前缀不参与裁剪，至少保留一个基础名字符
		keep[i] = 1
		if strings.HasPrefix(head, prefix) {
			keep[i] += utf8.RuneCountInString(prefix)
		}
	}

	dirLen := utf8.RuneCountInString(dir)

	for {
		over := false

		for i := range heads {
			if dirLen+len(heads[i])+len(exts[i]) <= MaxPathLength {
				continue
			}

			over = true

			if len(heads[i]) <= keep[i] {
				return nil, attachErr("public path for %q cannot fit in %d characters", originals[i], MaxPathLength)
			}

			heads[i] = heads[i][:max(len(heads[i])-TrimStep, keep[i])]
		}

		if !over {
			break
		}
	}

	names := make([]string, len(originals))
	for i := range heads {
		names[i] = string(heads[i]) + exts[i]
	}

	return names, nil
}

func (m *Manager) put(ctx context.Context, src types.FileSource, year int, name string) (StoredFile, error) {
	rel := strconv.Itoa(year) + "/" + name

	exists, err := m.backend.Exists(ctx, rel)
	if err != nil {
		return StoredFile{}, attachErr("check %s: %v", name, err)
	}

	if exists {
		return StoredFile{}, attachErr("destination %s already exists", name)
	}

	if src.Open == nil {
		return StoredFile{}, attachErr("source %q is not readable", src.Name)
	}

	rc, err := src.Open()
	if err != nil {
		return StoredFile{}, attachErr("open source %q: %v", src.Name, err)
	}
	defer rc.Close()

	if err := m.backend.Write(ctx, rel, rc); err != nil {
		return StoredFile{}, attachErr("write %s: %v", name, err)
	}

	return StoredFile{Name: name, Path: rel, PublicPath: m.PublicDir(year) + name}, nil
}

// resolve 公开路径转回相对存储根的路径.
func (m *Manager) resolve(publicPath string) (string, error) {
	rel, ok := strings.CutPrefix(publicPath, m.publicBase+"/")
	if !ok {
		return "", attachErr("path %q is outside %s", publicPath, m.publicBase)
	}

	return rel, nil
}

// Remove 删除公开路径对应的文件. 文件已不存在时返回 false, nil.
func (m *Manager) Remove(ctx context.Context, publicPath string) (bool, error) {
	if publicPath == "" {
		return false, nil
	}

	rel, err := m.resolve(publicPath)
	if err != nil {
		return false, err
	}

	if err := m.backend.Remove(ctx, rel); err != nil {
		if files.IsNotExist(err) {
			return false, nil
		}

		return false, attachErr("remove %s: %v", rel, err)
	}

	return true, nil
}

// Open 读取公开路径对应的文件.
func (m *Manager) Open(ctx context.Context, publicPath string) (io.ReadCloser, error) {
	rel, err := m.resolve(publicPath)
	if err != nil {
		return nil, err
	}

	rc, err := m.backend.Open(ctx, rel)
	if err != nil {
		return nil, attachErr("open %s: %v", rel, err)
	}

	return rc, nil
}
