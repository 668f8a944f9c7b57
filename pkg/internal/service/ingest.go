package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/model"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/queue"
	"github.com/yeisme/pubvault/pkg/tracing"
)

// AuthorTitleSeparator 源文件名中作者与标题的分隔符："Autores | Titulo.pdf".
const AuthorTitleSeparator = "|"

// IngestService 从按年份分目录的源目录批量导入 PDF/BibTeX 对.
//
// 单条失败只记录到结果中，不中断批处理；只有源根目录无法列出时整体失败.
type IngestService struct {
	store       *store.PublicationStore
	attachments *attachment.Manager
	opts        options
}

// NewIngestService 创建导入服务. WithWorkers 控制并行处理的年份目录数.
func NewIngestService(st *store.PublicationStore, att *attachment.Manager, opts ...Option) *IngestService {
	return &IngestService{store: st, attachments: att, opts: newOptions("ingest", opts)}
}

// ImportDir 从本地目录导入.
func (s *IngestService) ImportDir(ctx context.Context, dir string) (*types.ImportResult, error) {
	return s.Import(ctx, afero.NewBasePathFs(afero.NewOsFs(), dir), "/")
}

// Import 导入 src 中 root 下的每个年份子目录.
//
// 年份目录之间互不共享状态，可以并行；每个目录的结果在全部完成后按年份顺序合并.
func (s *IngestService) Import(ctx context.Context, src afero.Fs, root string) (_ *types.ImportResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.import")
	defer func() { endSpan(span, err) }()

	entries, err := afero.ReadDir(src, root)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", types.ErrIO, root, err)
	}

	type yearDir struct {
		year int
		dir  string
	}

	var dirs []yearDir

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		year, err := strconv.Atoi(e.Name())
		if err != nil || year <= 0 {
			s.opts.logger.Debug().Str("dir", e.Name()).Msg("not a year directory, skipped")
			continue
		}

		dirs = append(dirs, yearDir{year: year, dir: path.Join(root, e.Name())})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].year < dirs[j].year })

	results := make([]types.ImportResult, len(dirs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers)

	for i, d := range dirs {
		g.Go(func() error {
			return s.importYear(gctx, src, d.dir, d.year, &results[i])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &types.ImportResult{Errors: []types.ItemError{}}
	for i := range results {
		total.Merge(&results[i])
	}

	s.opts.logger.Info().
		Str("source", root).
		Int("years", len(dirs)).
		Int("imported", total.Imported).
		Int("skipped", total.Skipped).
		Int("errors", len(total.Errors)).
		Msg("folder import finished")

	if total.Imported > 0 {
		s.opts.invalidate(ctx)
	}

	publish(ctx, &s.opts, queue.TopicImportCompleted, queue.BatchPayload{
		Source:   root,
		Imported: total.Imported,
		Skipped:  total.Skipped,
		Errors:   len(total.Errors),
	})

	return total, nil
}

// importYear 处理一个年份目录. 只有 ctx 取消时返回错误.
func (s *IngestService) importYear(ctx context.Context, src afero.Fs, dir string, year int, res *types.ImportResult) error {
	entries, err := afero.ReadDir(src, dir)
	if err != nil {
		res.AddError(strconv.Itoa(year), fmt.Errorf("%w: list: %w", types.ErrIO, err))
		return nil
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !e.Mode().IsRegular() {
			continue
		}

		base, ext := splitEntryName(e.Name())
		if ext != "pdf" {
			continue
		}

		item := strconv.Itoa(year) + "/" + e.Name()

		outcome := s.importPair(ctx, src, dir, e.Name(), base, year)
		switch outcome.kind {
		case metrics.OutcomeImported:
			res.Imported++
		case metrics.OutcomeSkipped:
			res.Skipped++
		default:
			res.AddError(item, outcome.err)
			s.opts.logger.Warn().Err(outcome.err).Str("item", item).Msg("import item failed")
		}

		metrics.IngestItems.WithLabelValues(outcome.kind).Inc()
	}

	return nil
}

type pairOutcome struct {
	kind string
	err  error
}

// importPair 导入一个 PDF 及其同名 .bib. 缺少 .bib 不是错误.
// 插入失败时已复制的文件留在原处：带唯一前缀，不会与其他文件冲突.
func (s *IngestService) importPair(ctx context.Context, src afero.Fs, dir, pdfName, base string, year int) pairOutcome {
	bibName := base + ".bib"

	ok, err := afero.Exists(src, path.Join(dir, bibName))
	if err != nil {
		return pairOutcome{kind: metrics.OutcomeFailed, err: fmt.Errorf("%w: stat %s: %w", types.ErrIO, bibName, err)}
	}

	if !ok {
		return pairOutcome{kind: metrics.OutcomeSkipped}
	}

	authors, title := ParseAuthorTitle(base)

	pdf, bib, err := s.attachments.StorePair(ctx,
		sourceFile(src, dir, pdfName),
		sourceFile(src, dir, bibName),
		year, s.opts.newPrefix())
	if err != nil {
		return pairOutcome{kind: metrics.OutcomeFailed, err: err}
	}

	p := &model.Publication{
		Title:   types.TruncateTitle(title),
		Authors: authors,
		Year:    year,
		PDFPath: &pdf.PublicPath,
		BibPath: &bib.PublicPath,
	}

	if err := s.store.Create(ctx, p); err != nil {
		return pairOutcome{kind: metrics.OutcomeFailed, err: err}
	}

	return pairOutcome{kind: metrics.OutcomeImported}
}

// ParseAuthorTitle 按第一个 "|" 拆分作者和标题. 没有分隔符时作者为空、标题为原样的 name.
// 分隔符右侧为空时标题退回整个 name.
func ParseAuthorTitle(name string) (authors, title string) {
	left, right, found := strings.Cut(name, AuthorTitleSeparator)
	if !found {
		return "", name
	}

	title = strings.TrimSpace(right)
	if title == "" {
		title = name
	}

	return strings.TrimSpace(left), title
}

// splitEntryName 按最后一个 "." 拆分目录项名，扩展名转小写.
// 目录项名是本机文件名，其中的反斜杠是普通字符.
func splitEntryName(name string) (base, ext string) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}

	return name[:i], strings.ToLower(name[i+1:])
}

func sourceFile(src afero.Fs, dir, name string) types.FileSource {
	return types.FileSource{
		Name: name,
		Open: func() (io.ReadCloser, error) { return src.Open(path.Join(dir, name)) },
	}
}
