// routes/wizard.go
package routes

import (
	"safegate/controllers"

	"github.com/gin-gonic/gin"
)

// SetupWizardRoutes configures the step-by-step report flow
func SetupWizardRoutes(router *gin.RouterGroup, wizardController *controllers.WizardController, submitLimit gin.HandlerFunc) {
	wizard := router.Group("/wizard")
	{
		wizard.POST("", wizardController.OpenWizard)
		wizard.GET("", wizardController.GetWizard)
		wizard.DELETE("", wizardController.CloseWizard)

		wizard.POST("/type", wizardController.SelectType)
		wizard.POST("/location", wizardController.CaptureLocation)
		wizard.POST("/details", wizardController.SetDetails)
		wizard.POST("/next", submitLimit, wizardController.Next)
		wizard.POST("/back", wizardController.Back)
		wizard.POST("/submit", submitLimit, wizardController.Submit)
	}
}
