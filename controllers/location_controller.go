package controllers

import (
	"safegate/models"
	"safegate/services"
	"safegate/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type LocationController struct {
	geolocator *services.DeviceGeolocator
	validator  *utils.ValidationService
}

func NewLocationController(geolocator *services.DeviceGeolocator, validator *utils.ValidationService) *LocationController {
	return &LocationController{
		geolocator: geolocator,
		validator:  validator,
	}
}

// ==================== DEVICE REPLIES ====================

// SubmitDeviceFix answers a pending location_request for devices that
// reply over HTTP instead of the websocket
func (lc *LocationController) SubmitDeviceFix(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req models.DeviceFixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid location data")
		return
	}
	if errs := lc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	delivered, err := lc.geolocator.HandleDeviceReply(userID, req)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	if delivered == 0 {
		logrus.Debugf("Unsolicited location reply from %s", userID)
	}

	utils.AcceptedResponse(c, "Location received", gin.H{"delivered": delivered})
}

// ==================== TRACKING ====================

// GetTrackingStatus reports whether live sharing is running
func (lc *LocationController) GetTrackingStatus(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	tracker := session.Tracker()
	status := models.TrackingStatus{
		Running:  tracker.IsRunning(),
		ReportID: tracker.ReportID(),
		LastFix:  tracker.LastFix(),
	}
	utils.SuccessResponse(c, "Tracking status retrieved successfully", status)
}

// StopTracking ends live location sharing for the caller
func (lc *LocationController) StopTracking(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	session.Tracker().Stop()
	utils.SuccessResponse(c, "Live location sharing stopped", models.TrackingStatus{})
}
