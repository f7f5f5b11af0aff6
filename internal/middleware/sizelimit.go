package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodySize admits Base64-embedded documents
const DefaultMaxBodySize int64 = 50 << 20

// SizeLimitConfig represents size limit configuration
type SizeLimitConfig struct {
	MaxBodySize int64 // in bytes
}

// SizeLimit rejects bodies above MaxBodySize. A declared Content-Length is
// refused up front; chunked bodies are cut off by http.MaxBytesReader and
// surface as *http.MaxBytesError when decoded.
func SizeLimit(config SizeLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}

		if c.Request.ContentLength > config.MaxBodySize {
			abortWithError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", config.MaxBodySize))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxBodySize)
		c.Next()
	}
}
