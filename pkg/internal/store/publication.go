// Package store 出版物表的持久化操作，所有查询参数化绑定，只有表名是静态标识符.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/pubvault/pkg/internal/model"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

// likeEscape LIKE 转义字符. 不用反斜杠，MySQL 字符串字面量会吞掉它.
const likeEscape = "!"

// dbTimeLayout MySQL DATETIME 的文本格式，CSV 导入时兼容旧导出.
const dbTimeLayout = "2006-01-02 15:04:05"

// updatableColumns Update 写入的列，fecha_creacion 永不更新.
var updatableColumns = []string{
	"titulo",
	"autores",
	"anio",
	"tipo_publicacion",
	"pdf_path",
	"bib_path",
	"revista",
	"ultima_modificacion",
}

// ListQuery 列表查询条件.
type ListQuery struct {
	Search string
	Year   int
	Type   string
	Offset int
	Limit  int
}

// PublicationStore 出版物表访问.
type PublicationStore struct {
	db *gorm.DB
}

// NewPublicationStore 创建 PublicationStore.
func NewPublicationStore(db *gorm.DB) *PublicationStore {
	return &PublicationStore{db: db}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrStore, op, err)
}

// Migrate 创建或更新表结构.
func (s *PublicationStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.Publication{}); err != nil {
		return storeErr("migrate", err)
	}

	return nil
}

// Create 插入一条记录，ID 由数据库分配并回填.
func (s *PublicationStore) Create(ctx context.Context, p *model.Publication) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return storeErr("insert", err)
	}

	return nil
}

// Get 按 ID 读取.
func (s *PublicationStore) Get(ctx context.Context, id uint) (*model.Publication, error) {
	var p model.Publication
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", types.ErrNotFound, id)
		}

		return nil, storeErr("select", err)
	}

	return &p, nil
}

// Update 写回标量字段和附件路径.
func (s *PublicationStore) Update(ctx context.Context, p *model.Publication) error {
	tx := s.db.WithContext(ctx).Model(p).Select(updatableColumns).Updates(p)
	if tx.Error != nil {
		return storeErr("update", tx.Error)
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", types.ErrNotFound, p.ID)
	}

	return nil
}

// Delete 删除一行.
func (s *PublicationStore) Delete(ctx context.Context, id uint) error {
	tx := s.db.WithContext(ctx).Delete(&model.Publication{}, id)
	if tx.Error != nil {
		return storeErr("delete", tx.Error)
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", types.ErrNotFound, id)
	}

	return nil
}

// escapeLike 转义 LIKE 通配符.
func escapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

func (s *PublicationStore) filtered(ctx context.Context, q ListQuery) *gorm.DB {
	dbx := s.db.WithContext(ctx).Model(&model.Publication{})

	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		dbx = dbx.Where(
			"(LOWER(titulo) LIKE ? ESCAPE '"+likeEscape+"' OR LOWER(autores) LIKE ? ESCAPE '"+likeEscape+"')",
			pattern, pattern,
		)
	}

	if q.Year > 0 {
		dbx = dbx.Where("anio = ?", q.Year)
	}

	if q.Type != "" {
		dbx = dbx.Where("tipo_publicacion = ?", q.Type)
	}

	return dbx
}

// List 按创建时间倒序分页列出，同时返回过滤后的总数.
func (s *PublicationStore) List(ctx context.Context, q ListQuery) ([]model.Publication, int64, error) {
	var total int64
	if err := s.filtered(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, storeErr("count", err)
	}

	rows := make([]model.Publication, 0, q.Limit)

	dbx := s.filtered(ctx, q).Order("fecha_creacion DESC").Order("id DESC")
	if q.Limit > 0 {
		dbx = dbx.Offset(q.Offset).Limit(q.Limit)
	}

	if err := dbx.Find(&rows).Error; err != nil {
		return nil, 0, storeErr("select", err)
	}

	return rows, total, nil
}

// Count 表内记录总数.
func (s *PublicationStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Publication{}).Count(&n).Error; err != nil {
		return 0, storeErr("count", err)
	}

	return n, nil
}

// Truncate 清空表. SQLite 没有 TRUNCATE，退化为全表 DELETE.
func (s *PublicationStore) Truncate(ctx context.Context) error {
	dbx := s.db.WithContext(ctx)

	var err error

	switch dbx.Dialector.Name() {
	case "sqlite":
		err = dbx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Publication{}).Error
	case "postgres":
		err = dbx.Exec("TRUNCATE TABLE " + model.TableName + " RESTART IDENTITY").Error
	default:
		err = dbx.Exec("TRUNCATE TABLE " + model.TableName).Error
	}

	if err != nil {
		return storeErr("truncate", err)
	}

	return nil
}

// Reset 删除并重建表.
func (s *PublicationStore) Reset(ctx context.Context) error {
	m := s.db.WithContext(ctx).Migrator()
	if err := m.DropTable(&model.Publication{}); err != nil {
		return storeErr("drop", err)
	}

	return s.Migrate(ctx)
}

// Columns 自然列顺序.
func (s *PublicationStore) Columns() []string {
	return model.Columns()
}

// Rows 所有记录按 ID 升序转为字符串，列顺序同 Columns. NULL 为空串.
func (s *PublicationStore) Rows(ctx context.Context) ([][]string, error) {
	var all []model.Publication
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&all).Error; err != nil {
		return nil, storeErr("select", err)
	}

	out := make([][]string, 0, len(all))
	for i := range all {
		out = append(out, toRow(&all[i]))
	}

	return out, nil
}

// UpsertRow 按列名映射写入一行：有 id 时按主键 upsert，否则插入.
func (s *PublicationStore) UpsertRow(ctx context.Context, row map[string]string) error {
	p, err := fromRow(row)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrValidation, err)
	}

	dbx := s.db.WithContext(ctx)
	if p.ID != 0 {
		dbx = dbx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		})
	}

	if err := dbx.Create(p).Error; err != nil {
		return storeErr("upsert", err)
	}

	return nil
}

// SyncSequence 让自增计数器越过当前最大 ID.
// 只有 PostgreSQL 需要：显式写入 id 不会推进序列. MySQL 与 SQLite 自动调整.
func (s *PublicationStore) SyncSequence(ctx context.Context) error {
	dbx := s.db.WithContext(ctx)
	if dbx.Dialector.Name() != "postgres" {
		return nil
	}

	err := dbx.Exec(
		"SELECT setval(pg_get_serial_sequence(?, 'id'), COALESCE((SELECT MAX(id) FROM "+model.TableName+"), 0) + 1, false)",
		model.TableName,
	).Error
	if err != nil {
		return storeErr("sync sequence", err)
	}

	return nil
}

// MissingJournal ID 大于 afterID、有 BibTeX 附件但 revista 为空的记录，按 ID 升序.
func (s *PublicationStore) MissingJournal(ctx context.Context, afterID uint, limit int) ([]model.Publication, error) {
	var rows []model.Publication

	dbx := s.db.WithContext(ctx).
		Where("revista IS NULL AND bib_path IS NOT NULL AND bib_path <> ?", "").
		Where("id > ?", afterID).
		Order("id ASC")
	if limit > 0 {
		dbx = dbx.Limit(limit)
	}

	if err := dbx.Find(&rows).Error; err != nil {
		return nil, storeErr("select", err)
	}

	return rows, nil
}

// SetJournal 设置 revista.
func (s *PublicationStore) SetJournal(ctx context.Context, id uint, journal string) error {
	tx := s.db.WithContext(ctx).Model(&model.Publication{ID: id}).Update("revista", journal)
	if tx.Error != nil {
		return storeErr("update", tx.Error)
	}

	if tx.RowsAffected == 0 {
		return fmt.Errorf("%w: id %d", types.ErrNotFound, id)
	}

	return nil
}

func nullable(v *string) string {
	if v == nil {
		return ""
	}

	return *v
}

func toRow(p *model.Publication) []string {
	return []string{
		strconv.FormatUint(uint64(p.ID), 10),
		p.Title,
		p.Authors,
		strconv.Itoa(p.Year),
		nullable(p.Type),
		nullable(p.PDFPath),
		nullable(p.BibPath),
		nullable(p.Journal),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}

	return time.ParseInLocation(dbTimeLayout, v, time.UTC)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}

	return &v
}

func fromRow(row map[string]string) (*model.Publication, error) {
	p := &model.Publication{}

	for col, v := range row {
		var err error

		switch col {
		case "id":
			if v != "" {
				var id uint64

				id, err = strconv.ParseUint(v, 10, 0)
				p.ID = uint(id)
			}
		case "titulo":
			p.Title = types.TruncateTitle(v)
		case "autores":
			p.Authors = v
		case "anio":
			p.Year, err = strconv.Atoi(strings.TrimSpace(v))
		case "tipo_publicacion":
			p.Type = optional(v)
		case "pdf_path":
			p.PDFPath = optional(v)
		case "bib_path":
			p.BibPath = optional(v)
		case "revista":
			p.Journal = optional(v)
		case "fecha_creacion":
			if v != "" {
				p.CreatedAt, err = parseTime(v)
			}
		case "ultima_modificacion":
			if v != "" {
				p.UpdatedAt, err = parseTime(v)
			}
		default:
			return nil, fmt.Errorf("unknown column %q", col)
		}

		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
	}

	return p, nil
}
