package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/mtrtrdev/localQA/internal/ai"
	"github.com/mtrtrdev/localQA/internal/pkg/errcode"
	appErr "github.com/mtrtrdev/localQA/internal/pkg/errors"
	"github.com/mtrtrdev/localQA/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	switch {
	case errors.Is(err, appErr.ErrInvalidName):
		response.Error(c, errcode.ErrInvalidName, err.Error())
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, err.Error())
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, err.Error())
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrConfig):
		response.Error(c, errcode.ErrInvalid, err.Error())
	case errors.Is(err, appErr.ErrEmptyIndex):
		response.Error(c, errcode.ErrEmptyIndex, err.Error())
	case errors.Is(err, appErr.ErrDimensionMismatch):
		response.Error(c, errcode.ErrDimensionMismatch, err.Error())
	case errors.Is(err, ai.ErrUnavailable):
		response.Error(c, errcode.ErrAIUnavailable, "ai not configured")
	case errors.Is(err, appErr.ErrEmbeddingProvider),
		errors.Is(err, appErr.ErrGenerationProvider):
		response.Error(c, errcode.ErrAIUnavailable, "ai provider failure")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
