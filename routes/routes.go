// routes/routes.go
package routes

import (
	"safegate/config"
	"safegate/controllers"
	"safegate/interfaces"
	"safegate/middleware"
	"safegate/services"
	"safegate/utils"
	"safegate/websocket"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Dependencies is everything main builds before the router.
type Dependencies struct {
	Config     *config.Config
	Redis      *redis.Client // nil runs rate limiting in process
	Hub        *websocket.Hub
	Sessions   *services.SessionManager
	Geolocator *services.DeviceGeolocator
	Feed       *services.ReportFeedService
	Remote     interfaces.RemoteReportService
	Media      *services.MediaService // nil disables photo uploads
	Guard      *services.IdempotencyGuard
	Auth       *services.AuthService
	Verifier   services.TokenVerifier
	Probes     map[string]controllers.HealthProbe
}

// SetupRoutes initializes all application routes
func SetupRoutes(deps Dependencies) *gin.Engine {
	router := gin.New()

	// Initialize controllers
	controllers := initializeControllers(deps)
	authMiddleware := middleware.NewAuthMiddleware(deps.Verifier, deps.Sessions)

	// Global middleware
	setupGlobalMiddleware(router, deps.Config)

	// Setup route groups
	setupPublicRoutes(router, controllers, deps.Config)
	setupAuthenticatedRoutes(router, controllers, authMiddleware, deps)
	SetupWebSocketRoutes(router, controllers.WebSocket, authMiddleware)

	return router
}

type Controllers struct {
	Auth      *controllers.AuthController
	Wizard    *controllers.WizardController
	Emergency *controllers.EmergencyController
	History   *controllers.HistoryController
	Location  *controllers.LocationController
	WebSocket *controllers.WebSocketController
	Health    *controllers.HealthController
}

func initializeControllers(deps Dependencies) *Controllers {
	validator := utils.NewValidationService()

	return &Controllers{
		Auth:      controllers.NewAuthController(deps.Auth, deps.Sessions, deps.Feed),
		Wizard:    controllers.NewWizardController(deps.Guard, validator),
		Emergency: controllers.NewEmergencyController(deps.Remote, deps.Media, deps.Guard, validator),
		History:   controllers.NewHistoryController(),
		Location:  controllers.NewLocationController(deps.Geolocator, validator),
		WebSocket: controllers.NewWebSocketController(deps.Hub),
		Health:    controllers.NewHealthController(deps.Config.Version, deps.Probes),
	}
}

// Global middleware setup
func setupGlobalMiddleware(router *gin.Engine, cfg *config.Config) {
	router.Use(middleware.NewErrorHandler(cfg.Environment, logrus.StandardLogger()).Handle())
	router.Use(middleware.DefaultLoggerMiddleware())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
}

// Public routes (no authentication required)
func setupPublicRoutes(router *gin.Engine, controllers *Controllers, cfg *config.Config) {
	router.GET("/health", controllers.Health.HealthCheck)

	if cfg.UploadDir != "" {
		router.Static(cfg.UploadBaseURL, cfg.UploadDir)
	}

	public := router.Group("/api/v1")
	{
		public.GET("/emergency-types", controllers.Emergency.GetEmergencyTypes)
		if !cfg.IsProduction() {
			SetupAuthRoutes(public, controllers.Auth)
		}
	}
}

// Authenticated routes (requires a JWT or Firebase ID token)
func setupAuthenticatedRoutes(router *gin.Engine, controllers *Controllers, authMiddleware *middleware.AuthMiddleware, deps Dependencies) {
	api := router.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	api.Use(middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:    deps.Redis,
		Requests: deps.Config.RateLimitRequests,
		Window:   deps.Config.RateLimitWindow,
	}).Middleware())

	// Submissions get their own, tighter budget
	emergencyLimit := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Redis:     deps.Redis,
		Requests:  10,
		Window:    time.Minute,
		KeyPrefix: "rate_limit:emergency",
	}).Middleware()

	SetupSessionRoutes(api, controllers.Auth)
	SetupWizardRoutes(api, controllers.Wizard, emergencyLimit)
	SetupEmergencyRoutes(api, controllers.Emergency, emergencyLimit)
	SetupHistoryRoutes(api, controllers.History)
	SetupLocationRoutes(api, controllers.Location)
}
