// routes/history.go
package routes

import (
	"safegate/controllers"

	"github.com/gin-gonic/gin"
)

// SetupHistoryRoutes configures the per-user offline report log
func SetupHistoryRoutes(router *gin.RouterGroup, historyController *controllers.HistoryController) {
	history := router.Group("/history")
	{
		history.GET("", historyController.GetHistory)
		history.GET("/dashboard", historyController.GetDashboard)
		history.DELETE("", historyController.ClearHistory)
		history.POST("/:id/resync", historyController.ResyncReport)
	}
}
