package types

import "io"

// FileSource 待存储的文件：原始文件名 + 打开内容的方法.
// 上传的临时文件、导入目录中的源文件都统一成这个形式.
type FileSource struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// PublicationFields 可编辑的标量字段.
type PublicationFields struct {
	Titulo          string `form:"titulo"           json:"titulo"`
	Autores         string `form:"autores"          json:"autores"`
	Anio            int    `form:"anio"             json:"anio"             rule:"min=0,max=9999"`
	TipoPublicacion string `form:"tipo_publicacion" json:"tipo_publicacion"`
	Revista         string `form:"revista"          json:"revista"`
}

// CreatePublicationRequest 新建出版物，PDF 和 BibTeX 必须同时提供.
type CreatePublicationRequest struct {
	PublicationFields

	PDF *FileSource
	Bib *FileSource
}

// EditPublicationRequest 编辑出版物，PDF/BibTeX 可分别替换.
type EditPublicationRequest struct {
	ID uint

	PublicationFields

	PDF *FileSource
	Bib *FileSource
}
