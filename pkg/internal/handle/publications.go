package handle

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/types"
)

// EditResponse 编辑结果. 附件替换失败时记录仍会保存，Warnings 说明未替换的文件.
type EditResponse struct {
	Publication types.PublicationInfo `json:"publication"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// formFile 可选的上传文件，未提供时返回 nil.
func formFile(c *gin.Context, field string) *types.FileSource {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil
	}

	return uploadSource(fh)
}

func uploadSource(fh *multipart.FileHeader) *types.FileSource {
	return &types.FileSource{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

// ListPublications 列表/搜索/过滤/分页.
//
//	@Summary	列出出版物
//	@Tags		出版物
//	@Produce	json
//	@Param		q			query		string	false	"标题或作者关键字"
//	@Param		anio		query		int		false	"年份"
//	@Param		tipo		query		string	false	"类型"
//	@Param		page		query		int		false	"页码"
//	@Param		page_size	query		int		false	"每页条数"
//	@Success	200			{object}	types.ListPublicationsResponse
//	@Failure	400			{object}	ErrorResponse
//	@Router		/api/v1/publications [get]
func (h *Handlers) ListPublications(c *gin.Context) {
	var req types.ListPublicationsRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.publications.List(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPublication 按 ID 获取.
//
//	@Summary	获取出版物
//	@Tags		出版物
//	@Produce	json
//	@Param		id	path		int	true	"ID"
//	@Success	200	{object}	types.PublicationInfo
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/v1/publications/{id} [get]
func (h *Handlers) GetPublication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	info, err := h.publications.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// CreatePublication multipart 表单：标量字段 + pdf + bib.
//
//	@Summary	新建出版物
//	@Tags		出版物
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		titulo				formData	string	true	"标题"
//	@Param		autores				formData	string	false	"作者"
//	@Param		anio				formData	int		false	"年份，默认当前年"
//	@Param		tipo_publicacion	formData	string	true	"类型"
//	@Param		revista				formData	string	false	"期刊"
//	@Param		pdf					formData	file	true	"PDF"
//	@Param		bib					formData	file	true	"BibTeX"
//	@Success	201					{object}	types.PublicationInfo
//	@Failure	400					{object}	ErrorResponse
//	@Failure	422					{object}	ErrorResponse
//	@Router		/api/v1/publications [post]
func (h *Handlers) CreatePublication(c *gin.Context) {
	var req types.CreatePublicationRequest
	if !bind(c, &req.PublicationFields) {
		return
	}

	req.PDF = formFile(c, "pdf")
	req.Bib = formFile(c, "bib")

	p, err := h.publications.Create(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, service.ToInfo(p))
}

// UpdatePublication multipart 表单，pdf/bib 可选.
//
//	@Summary	编辑出版物
//	@Tags		出版物
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		id		path		int		true	"ID"
//	@Param		titulo	formData	string	true	"标题"
//	@Param		pdf		formData	file	false	"替换 PDF"
//	@Param		bib		formData	file	false	"替换 BibTeX"
//	@Success	200		{object}	EditResponse
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/v1/publications/{id} [put]
func (h *Handlers) UpdatePublication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	req := types.EditPublicationRequest{ID: id}
	if !bind(c, &req.PublicationFields) {
		return
	}

	req.PDF = formFile(c, "pdf")
	req.Bib = formFile(c, "bib")

	p, err := h.publications.Edit(c.Request.Context(), &req)
	if p == nil {
		writeError(c, err)
		return
	}

	resp := EditResponse{Publication: service.ToInfo(p)}
	if err != nil {
		resp.Warnings = []string{err.Error()}
	}

	c.JSON(http.StatusOK, resp)
}

// DeletePublication 删除记录及其附件.
//
//	@Summary	删除出版物
//	@Tags		出版物
//	@Param		id	path	int	true	"ID"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/v1/publications/{id} [delete]
func (h *Handlers) DeletePublication(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.publications.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ClearPublications 清空表，不删除附件.
//
//	@Summary	清空出版物
//	@Tags		维护
//	@Success	204
//	@Router		/api/v1/publications [delete]
func (h *Handlers) ClearPublications(c *gin.Context) {
	if err := h.publications.Clear(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ResetPublications 重建表结构，不删除附件.
//
//	@Summary	重建出版物表
//	@Tags		维护
//	@Success	204
//	@Router		/api/v1/publications/reset [post]
func (h *Handlers) ResetPublications(c *gin.Context) {
	if err := h.publications.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListTypes 可选的出版物类型.
//
//	@Summary	出版物类型
//	@Tags		出版物
//	@Produce	json
//	@Success	200	{array}	string
//	@Router		/api/v1/publications/types [get]
func (h *Handlers) ListTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.publications.Types())
}
