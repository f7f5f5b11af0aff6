package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := stderrors.New("boom")
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"constraint", ConstraintViolation(cause), http.StatusBadRequest},
		{"not found", NotFound("patient", nil), http.StatusNotFound},
		{"store", StoreFailure(cause), http.StatusInternalServerError},
		{"bad request", BadRequest("bad", cause), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token", nil), http.StatusUnauthorized},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"internal", Internal(cause), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestStatusOfWrappedError(t *testing.T) {
	cause := stderrors.New("UNIQUE constraint failed: patients.pid")
	wrapped := fmt.Errorf("failed to create patient: %w", ConstraintViolation(cause))

	status, msg := StatusOf(wrapped)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, cause.Error(), msg)
	assert.True(t, Is(wrapped, KindConstraintViolation))
	assert.True(t, stderrors.Is(wrapped, cause))
}

func TestStatusOfPlainError(t *testing.T) {
	status, msg := StatusOf(stderrors.New("disk I/O error"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "disk I/O error", msg)
}

func TestErrorMessageDoesNotRepeatCause(t *testing.T) {
	cause := stderrors.New("database is locked")
	assert.Equal(t, "database is locked", StoreFailure(cause).Error())
	assert.Equal(t, "patient not found: sql: no rows", NotFound("patient", stderrors.New("sql: no rows")).Error())
}
