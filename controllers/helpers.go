package controllers

import (
	"context"
	"net/http"
	"safegate/middleware"
	"safegate/models"
	"safegate/services"
	"safegate/utils"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// submitFunc runs a submission and reports an optional location warning.
type submitFunc func(ctx context.Context) (*models.SubmissionResult, *utils.LocationError, error)

func requireSession(c *gin.Context) (*services.AppSession, bool) {
	session, ok := middleware.GetSession(c)
	if !ok || session == nil {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return nil, false
	}
	return session, true
}

// respondSubmission writes the result of a finalized report. A remote
// failure still carries the report in the body.
func respondSubmission(c *gin.Context, result *models.SubmissionResult, warning *utils.LocationError, err error) {
	if err != nil {
		utils.HandleServiceError(c, err, result)
		return
	}

	response := models.APIResponse{
		Success: true,
		Message: "Emergency reported successfully",
		Data:    result,
	}
	if warning != nil {
		response.Warnings = []string{warning.Message}
	}
	if result != nil && result.Dispatch.PartialFailure {
		response.Warnings = append(response.Warnings, "Some notifications could not be delivered")
	}
	response.Timestamp = time.Now()
	c.JSON(http.StatusCreated, response)
}

// runIdempotent guards run with the Idempotency-Key header when the client
// sent one. A replayed key is rejected with the report id it produced.
func runIdempotent(c *gin.Context, guard *services.IdempotencyGuard, userID string, run submitFunc) {
	ctx := c.Request.Context()
	key := c.GetHeader(IdempotencyKeyHeader)

	if key == "" || guard == nil {
		result, warning, err := run(ctx)
		respondSubmission(c, result, warning, err)
		return
	}

	existingID, reserved, err := guard.Reserve(ctx, userID, key)
	if err != nil {
		logrus.WithError(err).Warn("Idempotency reserve failed, submitting without guard")
		result, warning, err := run(ctx)
		respondSubmission(c, result, warning, err)
		return
	}
	if !reserved {
		utils.ErrorResponse(c, http.StatusConflict, "Duplicate submission", gin.H{"reportId": existingID})
		return
	}

	result, warning, runErr := run(ctx)

	detached := context.WithoutCancel(ctx)
	if result != nil && result.Report != nil {
		if err := guard.Complete(detached, userID, key, result.Report.ID); err != nil {
			logrus.WithError(err).Warn("Idempotency complete failed")
		}
	} else if err := guard.Release(detached, userID, key); err != nil {
		logrus.WithError(err).Warn("Idempotency release failed")
	}

	respondSubmission(c, result, warning, runErr)
}
