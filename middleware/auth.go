package middleware

import (
	"context"
	"safegate/models"
	"safegate/services"
	"safegate/utils"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ContextUserID   = "userID"
	ContextUserName = "userName"
	ContextEmail    = "userEmail"
	ContextReporter = "reporter"
	ContextSession  = "session"
)

type AuthMiddleware struct {
	verifier services.TokenVerifier
	sessions *services.SessionManager
}

func NewAuthMiddleware(verifier services.TokenVerifier, sessions *services.SessionManager) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		sessions: sessions,
	}
}

// RequireAuth verifies the bearer token and attaches the user's session.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			utils.UnauthorizedResponse(c, "Authentication token required")
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		reporter, err := am.verifier.Verify(ctx, token)
		if err != nil {
			logrus.Warnf("Invalid token: %v", err)
			utils.UnauthorizedResponse(c, "Invalid authentication token")
			c.Abort()
			return
		}

		session, err := am.sessions.Open(ctx, *reporter)
		if err != nil {
			utils.HandleServiceError(c, err, nil)
			c.Abort()
			return
		}

		c.Set(ContextUserID, reporter.UID)
		c.Set(ContextUserName, reporter.Name)
		c.Set(ContextEmail, reporter.Email)
		c.Set(ContextReporter, *reporter)
		c.Set(ContextSession, session)
		c.Next()
	}
}

// extractToken reads the Authorization header, falling back to the token
// query parameter that browsers must use for websocket upgrades.
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

func GetCurrentReporter(c *gin.Context) (models.Reporter, bool) {
	value, exists := c.Get(ContextReporter)
	if !exists {
		return models.Reporter{}, false
	}
	reporter, ok := value.(models.Reporter)
	return reporter, ok
}

func GetSession(c *gin.Context) (*services.AppSession, bool) {
	value, exists := c.Get(ContextSession)
	if !exists {
		return nil, false
	}
	session, ok := value.(*services.AppSession)
	return session, ok
}
