// Package middleware 提供 gin 中间件：请求 ID、访问日志、CORS、限流、熔断、追踪与指标.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// HeaderRequestID 请求 ID 头.
	HeaderRequestID = "X-Request-ID"
	// maxRequestIDLen 客户端传入的请求 ID 超过该长度时重新生成.
	maxRequestIDLen = 128
)

type requestIDKey struct{}

// RequestIDMiddleware 沿用客户端的 X-Request-ID，没有时生成一个，并写回响应头.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Header(HeaderRequestID, id)
		c.Set(HeaderRequestID, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDKey{}, id))

		c.Next()
	}
}

// RequestID 从 context 读取请求 ID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
