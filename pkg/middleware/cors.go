package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware CORS中间件. 暴露 Content-Disposition 以便浏览器读取 CSV 下载的文件名.
func CORSMiddleware() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = append(config.AllowHeaders, HeaderRequestID)
	config.ExposeHeaders = []string{"Content-Disposition", HeaderRequestID}
	config.AllowFiles = true

	return cors.New(config)
}
