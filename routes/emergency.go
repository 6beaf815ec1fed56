// routes/emergency.go
package routes

import (
	"safegate/controllers"

	"github.com/gin-gonic/gin"
)

// SetupEmergencyRoutes configures report feeds, status changes and SOS
func SetupEmergencyRoutes(router *gin.RouterGroup, emergencyController *controllers.EmergencyController, submitLimit gin.HandlerFunc) {
	emergencies := router.Group("/emergencies")
	{
		emergencies.POST("/sos", submitLimit, emergencyController.TriggerSOS)
		emergencies.GET("/active", emergencyController.GetActiveEmergencies)
		emergencies.GET("/mine", emergencyController.GetMyEmergencies)
		emergencies.GET("/:id/locations", emergencyController.GetLocationHistory)
		emergencies.PUT("/:id/status", emergencyController.UpdateEmergencyStatus)
		emergencies.POST("/:id/photos", emergencyController.UploadEmergencyPhoto)
	}
}
