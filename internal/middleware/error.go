package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/patient-records/internal/handler"
)

// abortWithError stops the chain with the standard {error} body
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, handler.NewErrorResponse(message))
}
