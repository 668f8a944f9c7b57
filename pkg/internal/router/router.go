// Package router 把处理器绑定到 gin 路由，处理器由 pkg/internal/handle 提供并注入.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/handle"
)

// RegisterPublicationRoutes 绑定出版物接口（假定上层传入 /api/v1 分组）：
//
//	GET    /publications             -> ListPublications
//	POST   /publications             -> CreatePublication
//	DELETE /publications             -> ClearPublications
//	GET    /publications/types       -> ListTypes
//	GET    /publications/export      -> ExportCSV
//	POST   /publications/import      -> ImportFolder
//	POST   /publications/import-csv  -> ImportCSV
//	POST   /publications/enrich      -> Enrich
//	POST   /publications/reset       -> ResetPublications
//	GET    /publications/:id         -> GetPublication
//	PUT    /publications/:id         -> UpdatePublication
//	DELETE /publications/:id         -> DeletePublication
func RegisterPublicationRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	pubs := g.Group("/publications")
	{
		pubs.GET("", h.ListPublications)
		pubs.POST("", h.CreatePublication)
		pubs.DELETE("", h.ClearPublications)

		// 维护与批处理
		pubs.GET("/types", h.ListTypes)
		pubs.GET("/export", h.ExportCSV)
		pubs.POST("/import", h.ImportFolder)
		pubs.POST("/import-csv", h.ImportCSV)
		pubs.POST("/enrich", h.Enrich)
		pubs.POST("/reset", h.ResetPublications)

		single := pubs.Group("/:id")
		{
			single.GET("", h.GetPublication)
			single.PUT("", h.UpdatePublication)
			single.DELETE("", h.DeletePublication)
		}
	}
}

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(e *gin.Engine, h *handle.Handlers) {
	e.GET("/healthz", h.Health)
}

// RegisterAttachmentRoutes 在 publicBase 下只读提供附件.
func RegisterAttachmentRoutes(e *gin.Engine, publicBase string, h *handle.Handlers) {
	handler := h.ServeAttachment(publicBase)

	e.GET(publicBase+"/*filepath", handler)
	e.HEAD(publicBase+"/*filepath", handler)
}
