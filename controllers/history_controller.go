package controllers

import (
	"safegate/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HistoryController exposes the per-user offline report log.
type HistoryController struct{}

func NewHistoryController() *HistoryController {
	return &HistoryController{}
}

// GetHistory returns the logged reports, most recent first
func (hc *HistoryController) GetHistory(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	reports, err := session.Store().List(c.Request.Context())
	if err != nil {
		logrus.Errorf("Read history failed: %v", err)
		utils.HandleServiceError(c, utils.NewInternalError("Failed to read history", err), nil)
		return
	}

	utils.SuccessResponse(c, "History retrieved successfully", reports)
}

func (hc *HistoryController) GetDashboard(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	dashboard, err := session.Store().Dashboard(c.Request.Context())
	if err != nil {
		logrus.Errorf("Build dashboard failed: %v", err)
		utils.HandleServiceError(c, utils.NewInternalError("Failed to build dashboard", err), nil)
		return
	}

	utils.SuccessResponse(c, "Dashboard retrieved successfully", dashboard)
}

func (hc *HistoryController) ClearHistory(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	if err := session.Store().Clear(c.Request.Context()); err != nil {
		logrus.Errorf("Clear history failed: %v", err)
		utils.HandleServiceError(c, utils.NewInternalError("Failed to clear history", err), nil)
		return
	}

	utils.SuccessResponse(c, "History cleared", nil)
}

// ResyncReport replays one logged report to the server right away
func (hc *HistoryController) ResyncReport(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	reportID := c.Param("id")

	report, err := session.Resync(c.Request.Context(), reportID)
	if err != nil {
		utils.HandleServiceError(c, err, report)
		return
	}

	utils.SuccessResponse(c, "Report synced", report)
}
