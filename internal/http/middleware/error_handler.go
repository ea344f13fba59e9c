package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/ecocoin-market/internal/dto"
	"github.com/ignatzorin/ecocoin-market/internal/logger"
	"github.com/ignatzorin/ecocoin-market/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, добавленные хэндлерами через c.Error.
// Ошибки вне таксономии маскируются, клиент видит только код и сообщение.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, body := ErrorBody(err)

		entry := logger.Component("http").WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": status,
		})
		if status >= http.StatusInternalServerError {
			entry.Error("http: ошибка запроса")
		} else {
			entry.Debug("http: ошибка запроса")
		}

		if apperror.Retryable(err) {
			c.Header("Retry-After", "1")
		}
		c.JSON(status, body)
	}
}

// ErrorBody переводит ошибку в HTTP статус и тело ответа.
func ErrorBody(err error) (int, dto.ErrorResponse) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, dto.ErrorResponse{Error: appErr.Message, Code: string(appErr.Code)}
	}
	return http.StatusInternalServerError, dto.ErrorResponse{
		Error: "внутренняя ошибка сервера",
		Code:  string(apperror.ErrCodeInternal),
	}
}

func abortWithAppError(c *gin.Context, err *apperror.AppError) {
	status, body := ErrorBody(err)
	c.AbortWithStatusJSON(status, body)
}
