package controllers

import (
	"context"
	"net/http"
	"safegate/interfaces"
	"safegate/models"
	"safegate/services"
	"safegate/utils"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type EmergencyController struct {
	remote    interfaces.RemoteReportService
	media     *services.MediaService
	guard     *services.IdempotencyGuard
	validator *utils.ValidationService
}

func NewEmergencyController(
	remote interfaces.RemoteReportService,
	media *services.MediaService,
	guard *services.IdempotencyGuard,
	validator *utils.ValidationService,
) *EmergencyController {
	return &EmergencyController{
		remote:    remote,
		media:     media,
		guard:     guard,
		validator: validator,
	}
}

// GetEmergencyTypes returns the type catalog with display metadata
func (ec *EmergencyController) GetEmergencyTypes(c *gin.Context) {
	utils.SuccessResponse(c, "Emergency types retrieved successfully", models.EmergencyTypeCatalog())
}

// TriggerSOS sends the discreet women safety alert in one call
func (ec *EmergencyController) TriggerSOS(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	logrus.WithField("user_id", session.Reporter.UID).Warn("Women safety SOS triggered")
	runIdempotent(c, ec.guard, session.Reporter.UID, session.TriggerWomenSafety)
}

// GetActiveEmergencies lists the most recent active reports
func (ec *EmergencyController) GetActiveEmergencies(c *gin.Context) {
	reports, err := ec.remote.ListActive(c.Request.Context())
	if err != nil {
		logrus.Errorf("List active emergencies failed: %v", err)
		utils.HandleServiceError(c, utils.NewRemoteError("listActive", err), nil)
		return
	}

	utils.SuccessResponse(c, "Active emergencies retrieved successfully", reports)
}

// GetMyEmergencies lists the caller's own reports
func (ec *EmergencyController) GetMyEmergencies(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	reports, err := ec.remote.ListByReporter(c.Request.Context(), userID)
	if err != nil {
		logrus.Errorf("List emergencies for %s failed: %v", userID, err)
		utils.HandleServiceError(c, utils.NewRemoteError("listByReporter", err), nil)
		return
	}

	utils.SuccessResponse(c, "Emergencies retrieved successfully", reports)
}

const defaultLocationHistoryLimit = 50

// GetLocationHistory returns the tracked fixes of a report, newest first
func (ec *EmergencyController) GetLocationHistory(c *gin.Context) {
	emergencyID := c.Param("id")

	limit := defaultLocationHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.BadRequestResponse(c, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	history, err := ec.remote.LocationHistory(c.Request.Context(), emergencyID, limit)
	if err != nil {
		logrus.Errorf("Location history for %s failed: %v", emergencyID, err)
		utils.HandleServiceError(c, utils.NewRemoteError("locationHistory", err), nil)
		return
	}

	utils.SuccessResponse(c, "Location history retrieved successfully", history)
}

// UpdateEmergencyStatus assigns or resolves a report
func (ec *EmergencyController) UpdateEmergencyStatus(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	emergencyID := c.Param("id")

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := ec.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	if err := session.UpdateReportStatus(c.Request.Context(), emergencyID, req.Status, req.Notes); err != nil {
		logrus.Errorf("Update status of %s failed: %v", emergencyID, err)
		utils.HandleServiceError(c, err, nil)
		return
	}

	utils.SuccessResponse(c, "Emergency status updated successfully", gin.H{
		"id":     emergencyID,
		"status": req.Status,
	})
}

// UploadEmergencyPhoto attaches a multipart "photo" to a report
func (ec *EmergencyController) UploadEmergencyPhoto(c *gin.Context) {
	if ec.media == nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Photo storage is not configured", nil)
		return
	}
	emergencyID := c.Param("id")

	header, err := c.FormFile("photo")
	if err != nil {
		utils.BadRequestResponse(c, "A photo file is required")
		return
	}
	if err := ec.media.ValidatePhoto(header); err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read photo")
		return
	}
	defer file.Close()

	// The upload survives the client hanging up once the body is read.
	photo, err := ec.media.UploadEmergencyPhoto(context.WithoutCancel(c.Request.Context()), emergencyID, header.Filename, file)
	if err != nil {
		logrus.Errorf("Photo upload for %s failed: %v", emergencyID, err)
		utils.HandleServiceError(c, err, nil)
		return
	}

	utils.CreatedResponse(c, "Photo uploaded successfully", photo)
}
