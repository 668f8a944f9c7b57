package model

import (
	"time"
)

// TableName 出版物表名.
const TableName = "publicaciones"

// Publication 出版物记录：书目元数据 + PDF/BibTeX 两个附件的公开路径.
type Publication struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Title   string `gorm:"column:titulo;size:255;not null"    json:"titulo"`
	Authors string `gorm:"column:autores;type:text"           json:"autores"`
	Year    int    `gorm:"column:anio;index"                  json:"anio"`
	// 类型不在封闭集合内时为 NULL
	Type    *string `gorm:"column:tipo_publicacion;size:64;index" json:"tipo_publicacion"`
	PDFPath *string `gorm:"column:pdf_path;size:255"              json:"pdf_path"`
	BibPath *string `gorm:"column:bib_path;size:255"              json:"bib_path"`
	Journal *string `gorm:"column:revista;size:255"               json:"revista"`

	CreatedAt time.Time `gorm:"column:fecha_creacion;autoCreateTime;index" json:"fecha_creacion"`
	UpdatedAt time.Time `gorm:"column:ultima_modificacion;autoUpdateTime"  json:"ultima_modificacion"`
}

// TableName 指定 GORM 表名.
func (Publication) TableName() string {
	return TableName
}

// Columns 表的自然列顺序，CSV 导出/导入按此顺序.
func Columns() []string {
	return []string{
		"id",
		"titulo",
		"autores",
		"anio",
		"tipo_publicacion",
		"pdf_path",
		"bib_path",
		"revista",
		"fecha_creacion",
		"ultima_modificacion",
	}
}
