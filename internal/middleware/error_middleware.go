package middleware

import (
	"salesflow/internal/transport/httpdto"
	"salesflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ErrorHandler logs server-side errors attached with c.Error and renders the last one
// when the handler wrote no body.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, code := httpdto.StatusFromError(err)
		if l != nil && status >= 500 {
			l.WithContext(c.Request.Context()).Errorf("request error: %s", err.Error())
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, httpdto.NewErrorResponse(err.Error(), code))
	}
}
