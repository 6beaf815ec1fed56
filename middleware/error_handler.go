package middleware

import (
	"net/http"
	"runtime/debug"
	"safegate/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler recovers panics and turns errors attached with c.Error into
// the standard response envelope.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				eh.handlePanic(c, recovered)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			utils.HandleServiceError(c, c.Errors.Last().Err, nil)
		}
	}
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, recovered interface{}) {
	fields := logrus.Fields{
		"panic":      recovered,
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    c.GetString(ContextUserID),
	}
	if eh.environment == "development" {
		fields["stack"] = string(debug.Stack())
	}
	eh.logger.WithFields(fields).Error("Panic recovered")

	if !c.Writer.Written() {
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
	}
	c.Abort()
}
