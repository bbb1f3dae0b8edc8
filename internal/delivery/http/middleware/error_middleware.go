package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recruiting-pipeline/internal/delivery/http/response"
	"recruiting-pipeline/pkg/apperror"
)

// ErrorHandler renders the last error a handler attached with c.Error.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Code >= http.StatusInternalServerError {
				log.Error("request failed",
					zap.String("path", c.FullPath()),
					zap.String("request_id", c.GetString("RequestID")),
					zap.Int("status", appErr.Code),
					zap.Error(appErr.Err))
			}
			response.Error(c, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		// never expose internal error details to clients
		log.Error("unhandled error",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("RequestID")),
			zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
	}
}
