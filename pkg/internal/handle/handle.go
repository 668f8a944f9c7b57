// Package handle 提供 HTTP 请求处理器：解析请求、调用服务、把错误分类映射为状态码.
package handle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/types"
	"github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/rule"
)

// Handlers 出版物目录的请求处理器，依赖通过 NewHandlers 注入.
type Handlers struct {
	publications *service.PublicationService
	ingest       *service.IngestService
	csv          *service.CSVService
	enrich       *service.EnrichService
	attachments  *attachment.Manager
	health       HealthChecker
}

// NewHandlers 创建处理器集合. enrich 和 health 可以为 nil.
func NewHandlers(
	pubs *service.PublicationService,
	ingest *service.IngestService,
	csv *service.CSVService,
	enrich *service.EnrichService,
	att *attachment.Manager,
	health HealthChecker,
) *Handlers {
	return &Handlers{
		publications: pubs,
		ingest:       ingest,
		csv:          csv,
		enrich:       enrich,
		attachments:  att,
		health:       health,
	}
}

// ErrorResponse 错误响应.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusOf 错误分类对应的 HTTP 状态码.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrIO):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAttachment):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError 输出错误. 5xx 记 error 日志，其余记 warn.
func writeError(c *gin.Context, err error) {
	status := StatusOf(err)

	l := log.Component("http")
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		l.Warn().Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

// writeBindError 绑定或校验失败.
func writeBindError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid request: " + err.Error(),
		Details: rule.Errors(err),
	})
}

// bind 绑定并用 rule 校验.
func bind(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		writeBindError(c, err)
		return false
	}

	if err := rule.ValidateStruct(obj); err != nil {
		writeBindError(c, err)
		return false
	}

	return true
}

// pathID 解析 :id.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}

	return uint(id), true
}
