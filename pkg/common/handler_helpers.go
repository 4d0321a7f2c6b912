package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/trawell/rides-service/pkg/logger"
	"go.uber.org/zap"
)

// HandleServiceError translates a service error into an HTTP response.
// Returns true if an error was handled (and a response was sent).
//
// Usage:
//
//	result, err := h.service.DoSomething(ctx, req)
//	if common.HandleServiceError(c, err, "failed to do something") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		AppErrorResponse(c, appErr)
		return true
	}

	logger.WithContext(c.Request.Context()).Error(fallbackMessage, zap.Error(err))
	ErrorResponse(c, http.StatusInternalServerError, fallbackMessage)
	return true
}
