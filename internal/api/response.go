package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"formbuilder/internal/api/middleware"
	"formbuilder/internal/errcode"
	"formbuilder/internal/form"
	"formbuilder/internal/runtime"
	"formbuilder/internal/upload"
)

func Error(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{"error": msg, "code": code})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, errcode.InvalidInput, msg)
}

func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, errcode.ResourceMissing, msg)
}

func Internal(c *gin.Context, msg string) {
	Error(c, http.StatusInternalServerError, errcode.SystemError, msg)
}

// errorStatus 将领域错误映射为 HTTP 状态码与业务错误码。
func errorStatus(err error) (int, int) {
	var verr *runtime.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errcode.ValidationFailed
	case errors.Is(err, form.ErrTemplateNotFound),
		errors.Is(err, form.ErrSectionNotFound),
		errors.Is(err, form.ErrFieldNotFound),
		errors.Is(err, runtime.ErrSessionNotFound):
		return http.StatusNotFound, errcode.ResourceMissing
	case errors.Is(err, form.ErrTemplateLimit),
		errors.Is(err, form.ErrSectionLimit):
		return http.StatusConflict, errcode.LimitReached
	case errors.Is(err, runtime.ErrUploadInFlight):
		return http.StatusConflict, errcode.UploadInFlight
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, errcode.InvalidInput
	case errors.Is(err, upload.ErrInfectedFile),
		errors.Is(err, runtime.ErrUploadKindMismatch),
		errors.Is(err, form.ErrUnknownFieldType),
		errors.Is(err, form.ErrUnknownUploadKind),
		errors.Is(err, form.ErrNotUploadField),
		errors.Is(err, form.ErrInvalidAnswer):
		return http.StatusBadRequest, errcode.InvalidInput
	case errors.Is(err, upload.ErrUploadFailed):
		return http.StatusBadGateway, errcode.UploadFailed
	default:
		return http.StatusInternalServerError, errcode.SystemError
	}
}

// WriteError 输出领域错误。5xx 错误只返回通用信息，细节写入请求日志。
func WriteError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		middleware.LoggerFromContext(c).Error("request failed",
			slog.Int("status", status),
			slog.Any("error", err),
		)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		} else {
			msg = upload.ErrUploadFailed.Error()
		}
	}
	Error(c, status, code, msg)
}
