package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/osteo-api/internal/handler"
	"github.com/jwalitptl/osteo-api/pkg/errors"
)

// ErrorHandler renders the last error recorded on the context as the JSON
// envelope. Errors other than *errors.AppError are reported as internal
// without their detail.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only handle errors if they exist
		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		lastErr := c.Errors.Last().Err

		status := http.StatusInternalServerError
		resp := handler.NewErrorResponse("internal server error")

		if appErr, ok := errors.AsAppError(lastErr); ok {
			status = appErr.StatusCode()
			resp.Message = appErr.Message
			resp.Errors = appErr.Fields
		}

		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Err(lastErr).
			Str("request_id", requestID).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Int("status", status).
			Msg("request error")

		if c.Writer.Written() {
			return
		}
		c.JSON(status, resp)
	}
}
