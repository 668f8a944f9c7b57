// Package api 把 HTTP 路由挂载到 gin 引擎：/api/v1 业务接口、健康检查与附件访问.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/pubvault/pkg/internal/handle"
	"github.com/yeisme/pubvault/pkg/internal/router"
)

// BasePath 业务接口前缀.
const BasePath = "/api/v1"

// RegisterGroup 注册全部路由到传入的 gin 引擎. publicBase 为附件公开路径前缀.
func RegisterGroup(e *gin.Engine, h *handle.Handlers, publicBase string) *gin.Engine {
	router.RegisterPublicationRoutes(e.Group(BasePath), h)
	router.RegisterHealthCheckRoute(e, h)
	router.RegisterAttachmentRoutes(e, publicBase, h)

	return e
}
