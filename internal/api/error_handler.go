package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/qms-workflow/internal/utils"
	"github.com/mautops/qms-workflow/internal/workflow"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorHandlerMiddleware 错误处理中间件
// 处理器通过 c.Error 登记的错误在这里统一转换为响应
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		var validationErr *utils.ValidationError
		switch {
		case errors.As(err, &apiErr):
			Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
		case errors.As(err, &validationErr):
			Error(c, http.StatusBadRequest, validationErr.Message, validationErr.Code)
		default:
			Error(c, http.StatusInternalServerError, "internal server error", err.Error())
		}
	}
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// StatusForFailure 业务规则失败对应的 HTTP 状态码
func StatusForFailure(kind workflow.FailureKind) int {
	switch kind {
	case workflow.FailureNotFound:
		return http.StatusNotFound
	case workflow.FailureUnauthorized:
		return http.StatusForbidden
	case workflow.FailureConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// WriteResult 输出流转结果
func WriteResult(c *gin.Context, result *workflow.Result) {
	if result.Success {
		Success(c, result)
		return
	}
	status := StatusForFailure(result.Failure)
	c.JSON(status, ErrorResponse{
		Code:    status,
		Message: result.Message,
		Detail:  string(result.Failure),
		Data:    result,
	})
}
