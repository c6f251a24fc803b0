package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liutentor/tentor/internal/pkg/response"
)

// BodyLimit rejects bodies above max bytes with 413. Declared lengths are
// refused up front; chunked bodies are capped while being read.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > max {
			response.Abort(c, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}
