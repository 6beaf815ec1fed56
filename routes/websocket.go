// routes/websocket.go
package routes

import (
	"safegate/controllers"
	"safegate/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes configures the device channel. Browsers pass the
// token as a query parameter.
func SetupWebSocketRoutes(router *gin.Engine, wsController *controllers.WebSocketController, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/ws", authMiddleware.RequireAuth(), wsController.HandleWebSocket)

	ws := router.Group("/api/v1/ws")
	ws.Use(authMiddleware.RequireAuth())
	ws.GET("/stats", wsController.GetStats)
}
