// config/notification_config.go
package config

import (
	"context"
	"safegate/models"
	"safegate/repositories"
	"safegate/services"

	"github.com/sirupsen/logrus"
)

// InitializeNotificationDispatcher builds the SMS, email and call senders
// from the configured providers. A provider that is missing credentials
// degrades to a LogSender so reports still go through.
func InitializeNotificationDispatcher(ctx context.Context, cfg *Config, kv repositories.KVStore) *services.NotificationDispatcher {
	dispatcher := services.NewNotificationDispatcher(
		buildSMSSender(ctx, cfg),
		buildEmailSender(cfg),
		buildCallSender(cfg),
		services.NewKVDeliveryLedger(kv),
	)
	return dispatcher.WithGeocoder(buildGeocoder(cfg))
}

// InitializeWelcomeMailer reuses the configured email provider for the
// first sign-in greeting. It returns nil when the greeting is disabled.
func InitializeWelcomeMailer(cfg *Config) services.WelcomeMailer {
	if !cfg.WelcomeEmailEnabled {
		return nil
	}
	if mailer, ok := buildEmailSender(cfg).(services.WelcomeMailer); ok {
		return mailer
	}
	return services.LogSender{Channel: models.ChannelEmail}
}

func buildSMSSender(ctx context.Context, cfg *Config) services.ChannelSender {
	switch cfg.SMSProvider {
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			logrus.Warn("Twilio credentials missing, SMS alerts will only be logged")
			break
		}
		return services.NewTwilioSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.ResponderPhones)
	case "sns":
		sender, err := services.NewSNSSMSSender(ctx, cfg.AWSRegion, cfg.ResponderPhones)
		if err != nil {
			logrus.Errorf("Failed to initialize SNS: %v", err)
			break
		}
		return sender
	}
	return services.LogSender{Channel: models.ChannelSMS}
}

func buildEmailSender(cfg *Config) services.ChannelSender {
	switch cfg.EmailProvider {
	case "smtp":
		if cfg.SMTPUsername == "" || cfg.SMTPPassword == "" {
			logrus.Warn("SMTP credentials missing, email alerts will only be logged")
			break
		}
		return services.NewSMTPEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom, cfg.ResponderEmails)
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			logrus.Warn("SendGrid API key missing, email alerts will only be logged")
			break
		}
		return services.NewSendGridEmailSender(cfg.SendGridAPIKey, cfg.FromName, cfg.SMTPFrom, cfg.ResponderEmails)
	}
	return services.LogSender{Channel: models.ChannelEmail}
}

func buildCallSender(cfg *Config) services.ChannelSender {
	if cfg.CallProvider == "twilio" && cfg.TwilioAccountSID != "" && cfg.CallNumber != "" {
		return services.NewTwilioCallSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.CallNumber)
	}
	if cfg.CallProvider == "twilio" {
		logrus.Warn("Twilio voice not configured, call alerts will only be logged")
	}
	return services.LogSender{Channel: models.ChannelCall}
}

// buildGeocoder labels campus fixes, enriched by Google Maps when a key
// is available.
func buildGeocoder(cfg *Config) services.Geocoder {
	var inner services.Geocoder
	if cfg.GoogleMapsAPIKey != "" {
		maps, err := services.NewGoogleMapsGeocoder(cfg.GoogleMapsAPIKey)
		if err != nil {
			logrus.Errorf("Failed to initialize Google Maps: %v", err)
		} else {
			inner = maps
		}
	}

	fence := services.CampusGeofence{
		Latitude:     cfg.CampusLatitude,
		Longitude:    cfg.CampusLongitude,
		RadiusMeters: cfg.CampusRadius,
	}
	return services.NewGeofenceGeocoder(fence, cfg.CampusName, inner)
}
