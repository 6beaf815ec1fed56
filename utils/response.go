package utils

import (
	"errors"
	"net/http"
	"safegate/models"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// SuccessResponseWithWarnings is used when the operation went through on a
// degraded path, e.g. the fallback location.
func SuccessResponseWithWarnings(c *gin.Context, message string, data interface{}, warnings ...string) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Warnings:  warnings,
		Timestamp: time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// AcceptedResponse is for input that was queued rather than applied.
func AcceptedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusAccepted, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Error responses
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    getErrorCode(statusCode),
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func ValidationErrorResponse(c *gin.Context, validationErrors []FieldError) {
	c.JSON(http.StatusBadRequest, models.APIResponse{
		Success: false,
		Message: "Validation failed",
		Error: &models.APIError{
			Code:    models.ErrCodeValidation,
			Message: "Validation failed",
			Details: validationErrors,
		},
		Timestamp: time.Now(),
	})
}

func UnauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized access"
	}
	ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

// HandleServiceError maps the error taxonomy onto the response envelope.
// data is included in the body for errors that still produced a result.
func HandleServiceError(c *gin.Context, err error, data interface{}) {
	var validationErr *ValidationError
	var remoteErr *RemoteError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.APIResponse{
			Success: false,
			Message: validationErr.Reason,
			Data:    data,
			Error: &models.APIError{
				Code:    models.ErrCodeValidation,
				Message: validationErr.Reason,
				Details: validationErr,
			},
			Timestamp: time.Now(),
		})
	case errors.As(err, &remoteErr):
		logrus.WithError(err).Warn("Remote report store failure")
		c.JSON(http.StatusBadGateway, models.APIResponse{
			Success: false,
			Message: "Report saved locally but could not reach the server. Please try again.",
			Data:    data,
			Error: &models.APIError{
				Code:    ErrCodeRemote,
				Message: remoteErr.Error(),
				Details: gin.H{"retryable": true, "operation": remoteErr.Op},
			},
			Timestamp: time.Now(),
		})
	default:
		if serviceErr, ok := GetServiceError(err); ok {
			c.JSON(serviceErr.StatusCode, models.APIResponse{
				Success: false,
				Message: serviceErr.Message,
				Data:    data,
				Error: &models.APIError{
					Code:    serviceErr.Code,
					Message: serviceErr.Message,
					Details: serviceErr.Details,
				},
				Timestamp: time.Now(),
			})
			return
		}
		logrus.WithError(err).Error("Unhandled service error")
		ErrorResponse(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}

// WebSocket helpers
func WSEvent(eventType string, data interface{}) models.WSMessage {
	return models.WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func WSErrorEvent(requestID, code, message string) models.WSMessage {
	return models.WSMessage{
		Type:      models.WSTypeError,
		Data:      models.WSError{Code: code, Message: message},
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}

func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return models.ErrCodeValidation
	case http.StatusUnauthorized:
		return models.ErrCodeAuthentication
	case http.StatusForbidden:
		return models.ErrCodeAuthorization
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusTooManyRequests:
		return models.ErrCodeRateLimit
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return models.ErrCodeExternal
	default:
		return models.ErrCodeInternal
	}
}

func HealthCheckResponse(services map[string]string, version, uptime string) models.HealthResponse {
	status := "healthy"
	for _, serviceStatus := range services {
		if serviceStatus != "healthy" {
			status = "degraded"
			break
		}
	}

	return models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   version,
		Uptime:    uptime,
	}
}
