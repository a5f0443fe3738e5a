package syms

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stacksym/stacksym/api/types"
	"github.com/stacksym/stacksym/internal/symbolicate"
	"github.com/stacksym/stacksym/pkg/stacktrace"
)

// StatusCode maps a symbolication error to its HTTP status.
func StatusCode(err error) int {
	var encErr *stacktrace.InvalidEncodingError
	switch {
	case errors.As(err, &encErr), errors.Is(err, stacktrace.ErrUnsupportedTraceVersion):
		return http.StatusBadRequest
	case errors.Is(err, symbolicate.ErrDebugInfoUnavailable):
		return http.StatusNotFound
	case errors.Is(err, symbolicate.ErrBuildFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, symbolicate.ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusCode(err), types.GenericError{Error: err.Error()})
}
