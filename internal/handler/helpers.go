package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/liutentor/tentor/internal/pkg/errors"
	"github.com/liutentor/tentor/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	if he, ok := appErr.AsHTTP(err); ok {
		if he.Status >= http.StatusInternalServerError {
			logger.Error("request failed")
		}
		response.Fail(c, he.Status, he.Message)
		return
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request timed out")
		response.Fail(c, http.StatusGatewayTimeout, "Request timeout")
	case errors.Is(err, appErr.ErrNotFound):
		response.Fail(c, http.StatusNotFound, "Not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Fail(c, http.StatusBadRequest, "Invalid request")
	default:
		logger.Error("request failed")
		response.Fail(c, http.StatusInternalServerError, "Internal server error")
	}
}
