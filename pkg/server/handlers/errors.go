package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TNO/knowledge-engine/pkg/server/dto"
	"github.com/TNO/knowledge-engine/pkg/server/runtime"
)

// statusFor maps runtime errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runtime.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, runtime.ErrNotFound), errors.Is(err, runtime.ErrSuspended):
		return http.StatusNotFound
	case errors.Is(err, runtime.ErrAlreadyPolling):
		return http.StatusConflict
	case errors.Is(err, runtime.ErrStopping):
		return http.StatusGone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), dto.Error(err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.Error(msg))
}
