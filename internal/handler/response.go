package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apperrors "github.com/jwalitptl/patient-records/pkg/errors"
	"github.com/jwalitptl/patient-records/pkg/validator"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationErrorResponse lists the rejected fields of a request body
type ValidationErrorResponse struct {
	Error   string                 `json:"error"`
	Details []validator.FieldError `json:"details"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// RespondError writes err as {error: message} with the status of its kind
func RespondError(c *gin.Context, err error) {
	status, message := apperrors.StatusOf(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, NewErrorResponse(message))
}

// RespondBindError reports a body that could not be decoded or validated
func RespondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, NewErrorResponse("request body too large"))
		return
	}

	if details := validator.Translate(err); details != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:   "validation failed",
			Details: details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("malformed request body: "+err.Error()))
}
