// routes/location.go
package routes

import (
	"safegate/controllers"

	"github.com/gin-gonic/gin"
)

// SetupLocationRoutes configures device fixes and live tracking
func SetupLocationRoutes(router *gin.RouterGroup, locationController *controllers.LocationController) {
	router.POST("/location", locationController.SubmitDeviceFix)

	tracking := router.Group("/tracking")
	{
		tracking.GET("", locationController.GetTrackingStatus)
		tracking.POST("/stop", locationController.StopTracking)
	}
}
