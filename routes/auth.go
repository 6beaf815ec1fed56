// routes/auth.go
package routes

import (
	"safegate/controllers"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes mounts the development token endpoint
func SetupAuthRoutes(router *gin.RouterGroup, authController *controllers.AuthController) {
	auth := router.Group("/auth")
	auth.POST("/token", authController.IssueDevToken)
}

// SetupSessionRoutes configures the signed-in session
func SetupSessionRoutes(router *gin.RouterGroup, authController *controllers.AuthController) {
	session := router.Group("/session")
	{
		session.GET("", authController.GetSession)
		session.DELETE("", authController.Logout)
	}
}
