package controllers

import (
	"safegate/utils"
	"safegate/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// HandleWebSocket upgrades an authenticated request into a device channel
// @Summary WebSocket endpoint
// @Description Device channel for location requests, live tracking and report feeds
// @Tags WebSocket
// @Param token query string true "Authentication token"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.APIResponse
// @Router /ws [get]
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "Authentication token is required")
		return
	}

	// The upgrader writes its own HTTP error on failure.
	if err := websocket.ServeWS(wsc.hub, c.Writer, c.Request, userID); err != nil {
		logrus.Errorf("WebSocket upgrade failed for %s: %v", userID, err)
	}
}

// GetStats returns hub connection counters
func (wsc *WebSocketController) GetStats(c *gin.Context) {
	utils.SuccessResponse(c, "WebSocket stats retrieved successfully", wsc.hub.GetStats())
}
