// controllers/auth_controller.go
package controllers

import (
	"safegate/services"
	"safegate/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthController struct {
	authService *services.AuthService
	sessions    *services.SessionManager
	feed        *services.ReportFeedService
}

func NewAuthController(authService *services.AuthService, sessions *services.SessionManager, feed *services.ReportFeedService) *AuthController {
	return &AuthController{
		authService: authService,
		sessions:    sessions,
		feed:        feed,
	}
}

// ============== PUBLIC AUTHENTICATION ENDPOINTS ==============

// IssueDevToken mints a JWT for local testing
// @Summary Issue a development token
// @Description Only mounted outside production; real clients sign in with Firebase
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body services.DevTokenRequest true "Identity"
// @Success 201 {object} models.APIResponse{data=services.DevTokenResponse}
// @Failure 400 {object} models.APIResponse
// @Router /auth/token [post]
func (ac *AuthController) IssueDevToken(c *gin.Context) {
	var req services.DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body")
		return
	}

	response, fieldErrors, err := ac.authService.IssueDevToken(req)
	if len(fieldErrors) > 0 {
		utils.ValidationErrorResponse(c, fieldErrors)
		return
	}
	if err != nil {
		logrus.Errorf("Issue dev token failed: %v", err)
		utils.HandleServiceError(c, err, nil)
		return
	}

	utils.CreatedResponse(c, "Token issued", response)
}

// ============== SESSION ENDPOINTS ==============

// GetSession returns the signed-in reporter
func (ac *AuthController) GetSession(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	utils.SuccessResponse(c, "Session retrieved successfully", gin.H{
		"reporter": session.Reporter,
		"tracking": session.Tracker().IsRunning(),
	})
}

// Logout closes the session. Submissions already in flight still finish.
func (ac *AuthController) Logout(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		utils.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	if ac.feed != nil {
		ac.feed.UnwatchAll(userID)
	}
	ac.sessions.Close(c.Request.Context(), userID)

	utils.SuccessResponse(c, "Session closed", nil)
}
