// config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string
	Version     string
	Port        string
	LogLevel    string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration

	// Which RemoteReportService implementation to use: mongo, firestore, memory
	ReportBackend string

	// Firebase Config
	FirebaseCredentials string
	FirebaseProjectID   string
	FirebaseAuthEnabled bool

	// Notification providers
	SMSProvider   string // twilio, sns, log
	EmailProvider string // smtp, sendgrid, log
	CallProvider  string // twilio, log

	ResponderPhones []string
	ResponderEmails []string
	CallNumber      string

	// Twilio Config
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// AWS SNS
	AWSRegion string

	// SMTP Settings
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	SendGridAPIKey string
	FromName       string

	// Greets each user by email on first sign-in
	WelcomeEmailEnabled bool

	GoogleMapsAPIKey string
	StorageBucket    string

	// Local photo storage, used when no bucket is configured
	UploadDir     string
	UploadBaseURL string

	CORSOrigins []string

	// Campus fallback point used when the device cannot produce a fix
	CampusName      string
	CampusLatitude  float64
	CampusLongitude float64
	CampusRadius    float64

	LocationTimeout  time.Duration
	TrackingInterval time.Duration
	SyncInterval     time.Duration
	IdempotencyTTL   time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", ""),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/safegate"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me-in-production"),
		JWTIssuer:   getEnv("JWT_ISSUER", "safegate"),
		JWTTTL:      getEnvAsDuration("JWT_TTL", 12*time.Hour),

		ReportBackend: getEnv("REPORT_BACKEND", "mongo"),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAuthEnabled: getEnvAsBool("FIREBASE_AUTH_ENABLED", false),

		SMSProvider:   getEnv("SMS_PROVIDER", "twilio"),
		EmailProvider: getEnv("EMAIL_PROVIDER", "smtp"),
		CallProvider:  getEnv("CALL_PROVIDER", "twilio"),

		ResponderPhones: getEnvAsSlice("RESPONDER_PHONES", []string{"+917448325875", "+919445200978"}),
		ResponderEmails: getEnvAsSlice("RESPONDER_EMAILS", nil),
		CallNumber:      getEnv("EMERGENCY_CALL_NUMBER", ""),

		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		AWSRegion: getEnv("AWS_REGION", "ap-south-1"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "alerts@safegate.app"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		FromName:       getEnv("FROM_NAME", "SafeGate"),

		WelcomeEmailEnabled: getEnvAsBool("WELCOME_EMAIL_ENABLED", true),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", ""),

		UploadDir:     getEnv("UPLOAD_DIR", ""),
		UploadBaseURL: getEnv("UPLOAD_BASE_URL", "/uploads"),

		CORSOrigins: getEnvAsSlice("CORS_ORIGINS", nil),

		CampusName:      getEnv("CAMPUS_NAME", "Campus"),
		CampusLatitude:  getEnvAsFloat("CAMPUS_LATITUDE", 13.054167),
		CampusLongitude: getEnvAsFloat("CAMPUS_LONGITUDE", 80.072477),
		CampusRadius:    getEnvAsFloat("CAMPUS_RADIUS_METERS", 1500),

		LocationTimeout:  getEnvAsDuration("LOCATION_TIMEOUT", 10*time.Second),
		TrackingInterval: getEnvAsDuration("TRACKING_INTERVAL", 10*time.Second),
		SyncInterval:     getEnvAsDuration("SYNC_INTERVAL", 30*time.Second),
		IdempotencyTTL:   getEnvAsDuration("IDEMPOTENCY_TTL", 10*time.Minute),

		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Warnf("Invalid REDIS_URL %q, using localhost: %v", cfg.RedisURL, err)
		opt = &redis.Options{
			Addr: "localhost:6379",
			DB:   0,
		}
	}

	return redis.NewClient(opt)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
