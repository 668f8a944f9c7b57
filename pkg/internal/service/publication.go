package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeisme/pubvault/pkg/cache"
	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/filename"
	"github.com/yeisme/pubvault/pkg/internal/model"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/queue"
	"github.com/yeisme/pubvault/pkg/tracing"
)

// PublicationService 单条记录的生命周期：新建、编辑、删除，以及清空、重建和查询.
//
// 文件总是先于引用它的记录持久化；旧文件只在替换文件存储成功且记录更新后删除.
// 因此中途失败最多留下孤立文件，不会留下指向不存在文件的记录.
type PublicationService struct {
	store       *store.PublicationStore
	attachments *attachment.Manager
	opts        options
}

// NewPublicationService 创建记录生命周期服务.
func NewPublicationService(st *store.PublicationStore, att *attachment.Manager, opts ...Option) *PublicationService {
	return &PublicationService{store: st, attachments: att, opts: newOptions("publications", opts)}
}

// Types 可选的出版物类型.
func (s *PublicationService) Types() []types.PublicationType {
	return s.opts.types.Values()
}

// Create 校验输入、存储 PDF 和 BibTeX、插入记录.
// 校验失败不持久化任何东西；插入失败时删除刚存储的两个文件.
func (s *PublicationService) Create(ctx context.Context, req *types.CreatePublicationRequest) (_ *model.Publication, err error) {
	ctx, span := tracing.StartSpan(ctx, "publication.create")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpCreate, err)
	}()

	title := strings.TrimSpace(req.Titulo)
	if title == "" {
		return nil, validationErr("titulo is required")
	}

	ptype, ok := s.opts.types.Parse(req.TipoPublicacion)
	if !ok {
		return nil, validationErr("tipo_publicacion %q is not one of %v", req.TipoPublicacion, s.opts.types.Values())
	}

	if req.PDF == nil || req.Bib == nil {
		return nil, validationErr("both a PDF and a BibTeX file are required")
	}

	if err := checkExt(req.PDF, "pdf"); err != nil {
		return nil, err
	}

	if err := checkExt(req.Bib, "bib"); err != nil {
		return nil, err
	}

	year := s.opts.yearOrCurrent(req.Anio)

	pdf, bib, err := s.attachments.StorePair(ctx, *req.PDF, *req.Bib, year, s.opts.newPrefix())
	if err != nil {
		return nil, err
	}

	tipo := string(ptype)
	p := &model.Publication{
		Title:   types.TruncateTitle(title),
		Authors: strings.TrimSpace(req.Autores),
		Year:    year,
		Type:    &tipo,
		PDFPath: &pdf.PublicPath,
		BibPath: &bib.PublicPath,
		Journal: optional(strings.TrimSpace(req.Revista)),
	}

	if err := s.store.Create(ctx, p); err != nil {
		return nil, errors.Join(err, s.removeStored(ctx, pdf, bib))
	}

	s.opts.logger.Info().Uint("id", p.ID).Str("pdf", pdf.PublicPath).Msg("publication created")
	s.opts.invalidate(ctx)
	publish(ctx, &s.opts, queue.TopicPublicationCreated, queue.PublicationChangedPayload{Publication: ref(p)})

	return p, nil
}

// Edit 更新标量字段，并按需替换 PDF/BibTeX. anio 为 0 时保留记录原有年份.
//
// 新文件存储失败时保留旧路径和旧文件，其余修改照常保存，返回的记录不为 nil 且
// 错误包装 types.ErrAttachment. 记录更新失败时删除刚存储的新文件并返回 types.ErrStore.
func (s *PublicationService) Edit(ctx context.Context, req *types.EditPublicationRequest) (_ *model.Publication, err error) {
	ctx, span := tracing.StartSpan(ctx, "publication.edit")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpEdit, err)
	}()

	title := strings.TrimSpace(req.Titulo)
	if title == "" {
		return nil, validationErr("titulo is required")
	}

	if req.PDF != nil {
		if err := checkExt(req.PDF, "pdf"); err != nil {
			return nil, err
		}
	}

	if req.Bib != nil {
		if err := checkExt(req.Bib, "bib"); err != nil {
			return nil, err
		}
	}

	current, err := s.store.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.Title = types.TruncateTitle(title)
	updated.Authors = strings.TrimSpace(req.Autores)
	// 未提交 anio 时保留原年份
	if req.Anio != 0 {
		updated.Year = req.Anio
	}

	updated.Type = s.opts.types.Nullable(req.TipoPublicacion)
	updated.Journal = optional(strings.TrimSpace(req.Revista))

	var (
		attachErrs []error
		stored     []attachment.StoredFile
		replaced   []string
	)

	prefix := s.opts.newPrefix()

	replace := func(src *types.FileSource, kind string, target **string) {
		if src == nil {
			return
		}

		f, err := s.attachments.Store(ctx, *src, updated.Year, prefix)
		if err != nil {
			attachErrs = append(attachErrs, fmt.Errorf("replace %s: %w", kind, err))
			return
		}

		stored = append(stored, f)

		if old := deref(*target); old != "" {
			replaced = append(replaced, old)
		}

		*target = &f.PublicPath
	}

	replace(req.PDF, "pdf", &updated.PDFPath)
	replace(req.Bib, "bib", &updated.BibPath)

	if err := s.store.Update(ctx, &updated); err != nil {
		return nil, errors.Join(append([]error{err, s.removeStored(ctx, stored...)}, attachErrs...)...)
	}

	// 新文件和记录都已就绪，旧文件删除失败只留下孤立文件
	for _, old := range replaced {
		if _, err := s.attachments.Remove(ctx, old); err != nil {
			s.opts.logger.Warn().Err(err).Str("path", old).Msg("remove replaced attachment failed")
		}
	}

	s.opts.logger.Info().Uint("id", updated.ID).Int("replaced", len(replaced)).Msg("publication updated")
	s.opts.invalidate(ctx)
	publish(ctx, &s.opts, queue.TopicPublicationUpdated, queue.PublicationChangedPayload{
		Publication:   ref(&updated),
		ReplacedFiles: replaced,
	})

	return &updated, errors.Join(attachErrs...)
}

// Delete 删除记录的附件（已不存在视为成功，其他错误只记录日志）后删除记录.
// 记录删除失败时已删除的文件不会恢复.
func (s *PublicationService) Delete(ctx context.Context, id uint) (err error) {
	ctx, span := tracing.StartSpan(ctx, "publication.delete")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpDelete, err)
	}()

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, path := range []string{deref(p.PDFPath), deref(p.BibPath)} {
		if path == "" {
			continue
		}

		if _, err := s.attachments.Remove(ctx, path); err != nil {
			s.opts.logger.Error().Err(err).Uint("id", id).Str("path", path).Msg("remove attachment failed")
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.opts.invalidate(ctx)
	publish(ctx, &s.opts, queue.TopicPublicationDeleted, queue.PublicationChangedPayload{Publication: ref(p)})

	return nil
}

// Clear 清空表. 不删除磁盘上的附件.
func (s *PublicationService) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "publication.clear")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpClear, err)
	}()

	if err := s.store.Truncate(ctx); err != nil {
		return err
	}

	s.opts.logger.Warn().Msg("publication table cleared, attachments left on disk")
	s.opts.invalidate(ctx)
	publish(ctx, &s.opts, queue.TopicCatalogCleared, queue.CatalogPayload{Action: "clear"})

	return nil
}

// Reset 删除并重建表结构. 不删除磁盘上的附件.
func (s *PublicationService) Reset(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "publication.reset")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpReset, err)
	}()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}

	s.opts.logger.Warn().Msg("publication table recreated, attachments left on disk")
	s.opts.invalidate(ctx)
	publish(ctx, &s.opts, queue.TopicCatalogReset, queue.CatalogPayload{Action: "reset"})

	return nil
}

// Get 按 ID 获取记录.
func (s *PublicationService) Get(ctx context.Context, id uint) (*types.PublicationInfo, error) {
	return cache.GetOrSet(ctx, s.opts.cache, cache.Key("get", id), func() (*types.PublicationInfo, error) {
		p, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		info := ToInfo(p)

		return &info, nil
	}, s.opts.cacheTTL)
}

// List 搜索、过滤并分页.
func (s *PublicationService) List(ctx context.Context, req types.ListPublicationsRequest) (*types.ListPublicationsResponse, error) {
	req.Normalize()
	req.Search = strings.TrimSpace(req.Search)
	req.Type = strings.TrimSpace(req.Type)

	return cache.GetOrSet(ctx, s.opts.cache, cache.Key("list", req), func() (*types.ListPublicationsResponse, error) {
		items, total, err := s.store.List(ctx, store.ListQuery{
			Search: req.Search,
			Year:   req.Year,
			Type:   req.Type,
			Offset: req.Offset(),
			Limit:  req.PageSize,
		})
		if err != nil {
			return nil, err
		}

		resp := &types.ListPublicationsResponse{
			Items:      make([]types.PublicationInfo, 0, len(items)),
			Total:      total,
			Page:       req.Page,
			PageSize:   req.PageSize,
			TotalPages: int((total + int64(req.PageSize) - 1) / int64(req.PageSize)),
		}

		for i := range items {
			resp.Items = append(resp.Items, ToInfo(&items[i]))
		}

		return resp, nil
	}, s.opts.cacheTTL)
}

// removeStored 回滚刚存储的文件.
func (s *PublicationService) removeStored(ctx context.Context, stored ...attachment.StoredFile) error {
	var errs []error

	for _, f := range stored {
		if _, err := s.attachments.Remove(ctx, f.PublicPath); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// checkExt 要求文件扩展名（不区分大小写）为 want.
func checkExt(src *types.FileSource, want string) error {
	if _, ext := filename.Split(src.Name); ext != want {
		return validationErr("%q must be a .%s file", src.Name, want)
	}

	return nil
}

// ToInfo 记录转为对外展示的结构.
func ToInfo(p *model.Publication) types.PublicationInfo {
	return types.PublicationInfo{
		ID:                 p.ID,
		Titulo:             p.Title,
		Autores:            p.Authors,
		Anio:               p.Year,
		TipoPublicacion:    p.Type,
		PDFPath:            p.PDFPath,
		BibPath:            p.BibPath,
		Revista:            p.Journal,
		FechaCreacion:      p.CreatedAt.UTC().Format(time.RFC3339),
		UltimaModificacion: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func ref(p *model.Publication) queue.PublicationRef {
	return queue.PublicationRef{
		ID:      p.ID,
		Title:   p.Title,
		Year:    p.Year,
		PDFPath: deref(p.PDFPath),
		BibPath: deref(p.BibPath),
	}
}
