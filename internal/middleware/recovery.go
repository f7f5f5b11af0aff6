package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
)

// Recovery handles panics and logs them appropriately
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				appErr := apperrors.Internal(fmt.Errorf("panic: %v", rec))
				log.Error().
					Err(appErr.Err).
					Str("stack", string(debug.Stack())).
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Str("client_ip", c.ClientIP()).
					Str("request_id", c.GetString(ContextRequestID)).
					Msg("Request panic recovered")

				_ = c.Error(appErr)
				abortWithError(c, appErr.HTTPStatus(), appErr.Message)
			}
		}()
		c.Next()
	}
}
