package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/yeisme/pubvault/pkg/bibtex"
	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/filename"
	"github.com/yeisme/pubvault/pkg/internal/model"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/queue"
	"github.com/yeisme/pubvault/pkg/tracing"
)

// MaxJournalLength revista 列宽.
const MaxJournalLength = 255

// EnrichService 从已存储的 BibTeX 文件补全 revista.
type EnrichService struct {
	store       *store.PublicationStore
	attachments *attachment.Manager
	opts        options

	// mu 串行化 Run；after 为分批扫描的游标，一轮扫完后归零
	mu    sync.Mutex
	after uint
}

// NewEnrichService 创建期刊补全服务.
func NewEnrichService(st *store.PublicationStore, att *attachment.Manager, opts ...Option) *EnrichService {
	return &EnrichService{store: st, attachments: att, opts: newOptions("enrich", opts)}
}

// Run 扫描最多 limit 条（<=0 不限）revista 为空的记录.
//
// 有 limit 时从上次停下的 ID 之后继续，无法补全的记录不会挡住后面的记录；
// 扫到末尾后游标归零，下一轮从头开始. BibTeX 中没有期刊字段的记录保持不变.
func (s *EnrichService) Run(ctx context.Context, limit int) (_ *types.EnrichResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "enrich.run")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpEnrich, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		s.after = 0
	}

	start := s.after

	rows, err := s.store.MissingJournal(ctx, start, limit)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || len(rows) < limit {
		s.after = 0
	} else {
		s.after = rows[len(rows)-1].ID
	}

	res := &types.EnrichResult{Errors: []types.ItemError{}}

	for i := range rows {
		if err := ctx.Err(); err != nil {
			// 未处理的记录留给下一次
			s.after = start
			if i > 0 {
				s.after = rows[i-1].ID
			}

			return res, err
		}

		res.Scanned++

		updated, err := s.enrichOne(ctx, &rows[i])
		if err != nil {
			res.AddError(strconv.FormatUint(uint64(rows[i].ID), 10), err)
			continue
		}

		if updated {
			res.Updated++
		}
	}

	s.opts.logger.Info().
		Int("scanned", res.Scanned).
		Int("updated", res.Updated).
		Int("errors", len(res.Errors)).
		Msg("journal enrichment finished")

	if res.Updated > 0 {
		s.opts.invalidate(ctx)
	}

	publish(ctx, &s.opts, queue.TopicEnrichmentFinished, queue.BatchPayload{
		Source:   "bibtex",
		Imported: res.Updated,
		Errors:   len(res.Errors),
	})

	return res, nil
}

func (s *EnrichService) enrichOne(ctx context.Context, p *model.Publication) (bool, error) {
	rc, err := s.attachments.Open(ctx, deref(p.BibPath))
	if err != nil {
		return false, err
	}
	defer rc.Close()

	venue, err := bibtex.ParseVenue(rc)
	if errors.Is(err, bibtex.ErrNoVenue) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("%w: parse %s: %w", types.ErrIO, deref(p.BibPath), err)
	}

	if err := s.store.SetJournal(ctx, p.ID, filename.TruncateRunes(venue, MaxJournalLength)); err != nil {
		return false, err
	}

	return true, nil
}
