package types

const (
	// DefaultPageSize 默认每页条数.
	DefaultPageSize = 20
	// MaxPageSize 每页条数上限.
	MaxPageSize = 200
)

// ListPublicationsRequest 列表/搜索/过滤/分页参数.
type ListPublicationsRequest struct {
	Search   string `form:"q"         json:"q"         rule:"max=255"`
	Year     int    `form:"anio"      json:"anio"      rule:"min=0,max=9999"`
	Type     string `form:"tipo"      json:"tipo"`
	Page     int    `form:"page"      json:"page"      rule:"min=0"`
	PageSize int    `form:"page_size" json:"page_size" rule:"min=0"`
}

// Normalize 填充合理默认值.
func (r *ListPublicationsRequest) Normalize() {
	if r.Page <= 0 {
		r.Page = 1
	}

	if r.PageSize <= 0 || r.PageSize > MaxPageSize {
		r.PageSize = DefaultPageSize
	}
}

// Offset 当前页的偏移量.
func (r *ListPublicationsRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PublicationInfo 对外展示的出版物信息.
type PublicationInfo struct {
	ID                 uint    `json:"id"`
	Titulo             string  `json:"titulo"`
	Autores            string  `json:"autores"`
	Anio               int     `json:"anio"`
	TipoPublicacion    *string `json:"tipo_publicacion"`
	PDFPath            *string `json:"pdf_path"`
	BibPath            *string `json:"bib_path"`
	Revista            *string `json:"revista"`
	FechaCreacion      string  `json:"fecha_creacion"`
	UltimaModificacion string  `json:"ultima_modificacion"`
}

// ListPublicationsResponse 列表结果.
type ListPublicationsResponse struct {
	Items      []PublicationInfo `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
}
