package handle

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/types"
)

// ServeAttachment 只读提供已存储的附件，路由形如 <publicBase>/*filepath.
// 本地和 S3 后端走同一条路径.
func (h *Handlers) ServeAttachment(publicBase string) gin.HandlerFunc {
	publicBase = strings.TrimRight(publicBase, "/")

	return func(c *gin.Context) {
		rel := strings.TrimPrefix(c.Param("filepath"), "/")
		if rel == "" || strings.Contains(rel, "..") {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}

		rc, err := h.attachments.Open(c.Request.Context(), publicBase+"/"+rel)
		if err != nil {
			if errors.Is(err, types.ErrAttachment) {
				c.AbortWithStatus(http.StatusNotFound)
				return
			}

			writeError(c, err)

			return
		}
		defer rc.Close()

		ctype := mime.TypeByExtension(path.Ext(rel))
		if ctype == "" {
			ctype = "application/octet-stream"
		}

		c.Header("Content-Type", ctype)
		c.Header("Content-Disposition", `inline; filename="`+path.Base(rel)+`"`)
		c.Status(http.StatusOK)

		_, _ = io.Copy(c.Writer, rc)
	}
}
