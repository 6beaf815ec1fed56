package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"safegate/config"
	"safegate/controllers"
	"safegate/database"
	"safegate/repositories"
	"safegate/routes"
	"safegate/services"
	"safegate/utils"
	"safegate/websocket"
	"safegate/workers"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize logger
	setupLogger(cfg)

	ctx := context.Background()

	// Initialize Redis. Outside production a missing Redis falls back to
	// in-process stores.
	rdb := config.InitRedis(cfg)
	var kv repositories.KVStore = repositories.NewRedisKVStore(rdb, "safegate")
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.IsProduction() {
			logrus.Fatal("Failed to connect to Redis: ", err)
		}
		logrus.Warnf("Redis unavailable, using in-memory stores: %v", err)
		rdb.Close()
		rdb = nil
		kv = repositories.NewMemoryKVStore()
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Initialize database
	var db *mongo.Database
	if cfg.ReportBackend == "mongo" {
		var err error
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			logrus.Fatal("Failed to connect to database: ", err)
		}
		defer database.Disconnect()
	}

	firebaseClients, err := config.InitializeFirebase(ctx, cfg)
	if err != nil {
		logrus.Fatal(err)
	}
	defer firebaseClients.Close()

	backend, err := config.InitializeReportBackend(cfg, db, rdb, firebaseClients)
	if err != nil {
		logrus.Fatal(err)
	}

	media, gcs, err := config.InitializeMediaService(ctx, cfg, backend)
	if err != nil {
		logrus.Fatal(err)
	}
	if gcs != nil {
		defer gcs.Close()
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub()

	geolocator := services.NewDeviceGeolocator(hub)
	location := services.NewLocationProvider(geolocator, cfg.CampusLatitude, cfg.CampusLongitude, cfg.LocationTimeout)
	dispatcher := config.InitializeNotificationDispatcher(ctx, cfg, kv)

	sessions := services.NewSessionManager(kv, location, dispatcher, backend.Remote, hub, services.SessionConfig{
		TrackingInterval: cfg.TrackingInterval,
	}).WithWelcomeMailer(config.InitializeWelcomeMailer(cfg))
	defer sessions.Shutdown()

	feed := services.NewReportFeedService(backend.Remote, hub)
	defer feed.Stop()

	hub.SetRouter(websocket.NewDeviceRouter(geolocator, feed))
	hub.OnUserOffline(func(userID string) {
		feed.UnwatchAll(userID)
		sessions.Close(context.Background(), userID)
	})
	go hub.Run()
	defer hub.Stop()

	if err := feed.StartActiveFeed(ctx); err != nil {
		logrus.Errorf("Failed to start active emergencies feed: %v", err)
	}

	// Initialize workers
	syncWorker := workers.NewSyncWorker(sessions, kv, backend.Remote, cfg.SyncInterval)
	if err := syncWorker.Start(); err != nil {
		logrus.Fatal(err)
	}
	defer syncWorker.Stop()

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	// Setup routes
	router := routes.SetupRoutes(routes.Dependencies{
		Config:     cfg,
		Redis:      rdb,
		Hub:        hub,
		Sessions:   sessions,
		Geolocator: geolocator,
		Feed:       feed,
		Remote:     backend.Remote,
		Media:      media,
		Guard:      services.NewIdempotencyGuard(kv, cfg.IdempotencyTTL),
		Auth:       services.NewAuthService(jwtService),
		Verifier:   config.InitializeTokenVerifier(services.NewJWTVerifier(jwtService), firebaseClients),
		Probes:     healthProbes(db, rdb),
	})

	// Create HTTP server
	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in goroutine
	go func() {
		logrus.Info("🚀 SafeGate server starting on port ", cfg.Port)
		logrus.Info("📱 WebSocket endpoint: /ws")
		logrus.Info("💖 Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	logrus.Info("✅ Server shutdown complete")
}

func healthProbes(db *mongo.Database, rdb *redis.Client) map[string]controllers.HealthProbe {
	probes := map[string]controllers.HealthProbe{}
	if db != nil {
		probes["mongodb"] = database.Ping
	}
	if rdb != nil {
		probes["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return probes
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	if cfg.IsDevelopment() {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	}

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logrus.Warnf("Invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
			return
		}
		logrus.SetLevel(level)
	}
}
