package handle

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/types"
)

// EnrichRequest 手动触发期刊补全.
type EnrichRequest struct {
	Limit int `form:"limit" json:"limit" rule:"min=0"`
}

// ImportFolder 从服务器本地目录导入.
//
//	@Summary	目录导入
//	@Tags		批处理
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.ImportFolderRequest	true	"源目录"
//	@Success	200		{object}	types.ImportResult
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/v1/publications/import [post]
func (h *Handlers) ImportFolder(c *gin.Context) {
	var req types.ImportFolderRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.ingest.ImportDir(c.Request.Context(), req.Path)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// ExportCSV 下载整表 CSV.
//
//	@Summary	导出 CSV
//	@Tags		批处理
//	@Produce	text/csv
//	@Success	200	{file}	file
//	@Failure	400	{object}	ErrorResponse
//	@Router		/api/v1/publications/export [get]
func (h *Handlers) ExportCSV(c *gin.Context) {
	// 先写入缓冲，出错时还能返回 JSON 错误
	var buf bytes.Buffer

	n, err := h.csv.Export(c.Request.Context(), &buf)
	if err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("publicaciones-%s.csv", time.Now().UTC().Format("20060102-150405"))

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("X-Row-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ImportCSV multipart 字段 file 上传 CSV 并按 id upsert.
//
//	@Summary	导入 CSV
//	@Tags		批处理
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		file	formData	file	true	"CSV"
//	@Success	200		{object}	types.ImportResult
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/v1/publications/import-csv [post]
func (h *Handlers) ImportCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeBindError(c, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, fmt.Errorf("%w: open upload: %w", types.ErrIO, err))
		return
	}
	defer f.Close()

	res, err := h.csv.Import(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Enrich 从已存储的 BibTeX 补全 revista.
//
//	@Summary	期刊补全
//	@Tags		批处理
//	@Produce	json
//	@Param		limit	query		int	false	"最多处理条数"
//	@Success	200		{object}	types.EnrichResult
//	@Router		/api/v1/publications/enrich [post]
func (h *Handlers) Enrich(c *gin.Context) {
	if h.enrich == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "enrichment not configured"})
		return
	}

	var req EnrichRequest
	if !bind(c, &req) {
		return
	}

	res, err := h.enrich.Run(c.Request.Context(), req.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
