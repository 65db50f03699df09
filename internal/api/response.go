package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cvCanvas/internal/editor"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func AbortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

func Unauthorized(c *gin.Context)           { Error(c, http.StatusUnauthorized, "unauthorized") }
func BadRequest(c *gin.Context, msg string) { Error(c, http.StatusBadRequest, msg) }
func Forbidden(c *gin.Context, msg string)  { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)   { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)   { Error(c, http.StatusConflict, msg) }
func Internal(c *gin.Context, msg string)   { Error(c, http.StatusInternalServerError, msg) }

// statusOf 把编辑服务的哨兵错误映射为 HTTP 状态码；未知错误返回 500。
func statusOf(err error) int {
	switch {
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, editor.ErrComponentNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrVersionConflict),
		errors.Is(err, editor.ErrNothingToUndo),
		errors.Is(err, editor.ErrNothingToRedo):
		return http.StatusConflict
	case errors.Is(err, editor.ErrDocumentLimit):
		return http.StatusForbidden
	case editor.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError 写出错误响应；服务端错误只记录日志，不把细节返回给客户端。
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	Error(c, status, err.Error())
}
