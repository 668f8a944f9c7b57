package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/queue"
	"github.com/yeisme/pubvault/pkg/tracing"
)

const utf8BOM = "\uFEFF"

// CSVService 整表的 CSV 快照与恢复，不涉及附件文件.
type CSVService struct {
	store *store.PublicationStore
	fs    afero.Fs
	opts  options
}

// NewCSVService 创建 CSV 服务. fs 为 ExportFile/ImportFile 使用的文件系统，nil 时为本地磁盘.
func NewCSVService(st *store.PublicationStore, fs afero.Fs, opts ...Option) *CSVService {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &CSVService{store: st, fs: fs, opts: newOptions("csv", opts)}
}

func ioErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrIO, fmt.Sprintf(format, args...))
}

// Export 按自然列顺序写出表头和全部记录，返回数据行数. 表为空时返回 types.ErrIO.
func (s *CSVService) Export(ctx context.Context, w io.Writer) (n int, err error) {
	ctx, span := tracing.StartSpan(ctx, "csv.export")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpExportCSV, err)
	}()

	if err := s.ensureNotEmpty(ctx); err != nil {
		return 0, err
	}

	return s.write(ctx, w)
}

// ExportFile 导出到文件. 表为空时不创建文件；写入失败时删除半成品.
func (s *CSVService) ExportFile(ctx context.Context, name string) (n int, err error) {
	ctx, span := tracing.StartSpan(ctx, "csv.export_file")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpExportCSV, err)
	}()

	if err := s.ensureNotEmpty(ctx); err != nil {
		return 0, err
	}

	f, err := s.fs.Create(name)
	if err != nil {
		return 0, ioErr("create %s: %v", name, err)
	}

	n, err = s.write(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = ioErr("close %s: %v", name, cerr)
	}

	if err != nil {
		_ = s.fs.Remove(name)
		return 0, err
	}

	s.opts.logger.Info().Str("file", name).Int("rows", n).Msg("csv exported")

	return n, nil
}

func (s *CSVService) ensureNotEmpty(ctx context.Context) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return err
	}

	if count == 0 {
		return ioErr("no publications to export")
	}

	return nil
}

func (s *CSVService) write(ctx context.Context, w io.Writer) (int, error) {
	rows, err := s.store.Rows(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(s.store.Columns()); err != nil {
		return 0, ioErr("write header: %v", err)
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return 0, ioErr("write row %s: %v", row[0], err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return 0, ioErr("flush: %v", err)
	}

	metrics.CSVRows.WithLabelValues("export").Add(float64(len(rows)))

	return len(rows), nil
}

// Import 读取带表头的 CSV 并按 id upsert 每一行.
//
// 表头缺失、含未知列名或 CSV 语法错误时整体失败（types.ErrIO）；单行失败记为 "row N"，
// N 从第一行数据起计 1. 非法的 tipo_publicacion 写为 NULL.
func (s *CSVService) Import(ctx context.Context, r io.Reader) (_ *types.ImportResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "csv.import")
	defer func() {
		endSpan(span, err)
		metrics.ObserveOp(metrics.OpImportCSV, err)
	}()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ioErr("header row missing")
	}

	if err != nil {
		return nil, ioErr("read header: %v", err)
	}

	if err := s.checkHeader(header); err != nil {
		return nil, err
	}

	res := &types.ImportResult{Errors: []types.ItemError{}}

	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, ioErr("row %d: %v", line, err)
		}

		item := "row " + strconv.Itoa(line)

		if len(record) != len(header) {
			res.AddError(item, fmt.Errorf("%w: %d fields, header has %d", types.ErrValidation, len(record), len(header)))
			continue
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			row[col] = record[i]
		}

		if t, ok := row["tipo_publicacion"]; ok {
			row["tipo_publicacion"] = deref(s.opts.types.Nullable(t))
		}

		if err := s.store.UpsertRow(ctx, row); err != nil {
			res.AddError(item, err)
			continue
		}

		res.Imported++
	}

	metrics.CSVRows.WithLabelValues("import").Add(float64(res.Imported))

	if res.Imported > 0 {
		if err := s.store.SyncSequence(ctx); err != nil {
			return res, err
		}
	}

	s.opts.logger.Info().Int("imported", res.Imported).Int("errors", len(res.Errors)).Msg("csv imported")

	if res.Imported > 0 {
		s.opts.invalidate(ctx)
	}

	publish(ctx, &s.opts, queue.TopicCSVImported, queue.BatchPayload{
		Source:   "csv",
		Imported: res.Imported,
		Errors:   len(res.Errors),
	})

	return res, nil
}

// ImportFile 从文件导入.
func (s *CSVService) ImportFile(ctx context.Context, name string) (*types.ImportResult, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, ioErr("open %s: %v", name, err)
	}
	defer f.Close()

	res, err := s.Import(ctx, f)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// checkHeader 去掉 BOM 并校验列名.
func (s *CSVService) checkHeader(header []string) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	known := s.store.Columns()
	seen := make(map[string]bool, len(header))

	for i, col := range header {
		col = strings.TrimSpace(col)
		header[i] = col

		if !slices.Contains(known, col) {
			return ioErr("unknown column %q", col)
		}

		if seen[col] {
			return ioErr("duplicate column %q", col)
		}

		seen[col] = true
	}

	return nil
}
