package controllers

import (
	"context"
	"safegate/models"
	"safegate/services"
	"safegate/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WizardController struct {
	guard     *services.IdempotencyGuard
	validator *utils.ValidationService
}

func NewWizardController(guard *services.IdempotencyGuard, validator *utils.ValidationService) *WizardController {
	return &WizardController{
		guard:     guard,
		validator: validator,
	}
}

type wizardLocationResponse struct {
	Location models.GeoFix     `json:"location"`
	Wizard   models.WizardView `json:"wizard"`
}

// OpenWizard starts a fresh report flow, or resets the existing one
func (wc *WizardController) OpenWizard(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.OpenWizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	utils.CreatedResponse(c, "Wizard opened", wizard.View())
}

// GetWizard returns the current wizard snapshot
func (wc *WizardController) GetWizard(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	utils.SuccessResponse(c, "Wizard retrieved successfully", wizard.View())
}

func (wc *WizardController) CloseWizard(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	session.CloseWizard()
	utils.SuccessResponse(c, "Wizard closed", nil)
}

// SelectType sets the emergency type on the first step
func (wc *WizardController) SelectType(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req models.SelectTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}
	if errs := wc.validator.ValidateStruct(req); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs)
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}
	if err := wizard.SelectType(req.Type); err != nil {
		utils.HandleServiceError(c, err, wizard.View())
		return
	}

	utils.SuccessResponse(c, "Emergency type selected", wizard.View())
}

// CaptureLocation asks the device for a fix. The campus fallback is a
// warning, not a failure.
func (wc *WizardController) CaptureLocation(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	fix, warning, err := wizard.CaptureLocation(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err, wizard.View())
		return
	}

	data := wizardLocationResponse{Location: fix, Wizard: wizard.View()}
	if warning != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": session.Reporter.UID,
			"kind":    warning.Kind,
		}).Warn("Using fallback location")
		utils.SuccessResponseWithWarnings(c, "Location captured", data, warning.Message)
		return
	}

	utils.SuccessResponse(c, "Location captured", data)
}

// SetDetails stores the description and notification channels
func (wc *WizardController) SetDetails(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req models.DetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}
	if err := wizard.SetDetails(req.Description, req.Notifications); err != nil {
		utils.HandleServiceError(c, err, wizard.View())
		return
	}

	utils.SuccessResponse(c, "Details saved", wizard.View())
}

// Next validates the current step and moves forward. On the review step
// this submits the report.
func (wc *WizardController) Next(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	if wizard.State() == models.WizardStateReview {
		runIdempotent(c, wc.guard, session.Reporter.UID, func(ctx context.Context) (*models.SubmissionResult, *utils.LocationError, error) {
			result, err := wizard.Advance(ctx)
			return result, nil, err
		})
		return
	}

	if _, err := wizard.Advance(c.Request.Context()); err != nil {
		utils.HandleServiceError(c, err, wizard.View())
		return
	}

	utils.SuccessResponse(c, "Moved to next step", wizard.View())
}

func (wc *WizardController) Back(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}
	if err := wizard.Retreat(); err != nil {
		utils.HandleServiceError(c, err, wizard.View())
		return
	}

	utils.SuccessResponse(c, "Moved to previous step", wizard.View())
}

// Submit finalizes the report from the review step
func (wc *WizardController) Submit(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	wizard, err := session.Wizard()
	if err != nil {
		utils.HandleServiceError(c, err, nil)
		return
	}

	runIdempotent(c, wc.guard, session.Reporter.UID, func(ctx context.Context) (*models.SubmissionResult, *utils.LocationError, error) {
		result, err := wizard.Submit(ctx)
		return result, nil, err
	})
}
