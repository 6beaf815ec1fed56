package config

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// FirebaseClients holds the Firebase products the service talks to. Any
// field may be nil when the product is not configured.
type FirebaseClients struct {
	App       *firebase.App
	Firestore *firestore.Client
	Messaging *messaging.Client
	Auth      *auth.Client
}

func (c *Config) firebaseOptions() []option.ClientOption {
	if c.FirebaseCredentials == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(c.FirebaseCredentials)}
}

// InitializeFirebase returns nil when neither credentials nor a project
// id are configured.
func InitializeFirebase(ctx context.Context, cfg *Config) (*FirebaseClients, error) {
	if cfg.FirebaseCredentials == "" && cfg.FirebaseProjectID == "" {
		return nil, nil
	}

	var fbConfig *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, cfg.firebaseOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}
	clients := &FirebaseClients{App: app}

	if cfg.ReportBackend == "firestore" {
		clients.Firestore, err = app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firestore: %w", err)
		}
	}

	clients.Messaging, err = app.Messaging(ctx)
	if err != nil {
		logrus.Errorf("Failed to get FCM client: %v", err)
	}

	if cfg.FirebaseAuthEnabled {
		clients.Auth, err = app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Firebase Auth: %w", err)
		}
	}

	logrus.Info("🔥 Firebase initialized")
	return clients, nil
}

func (fc *FirebaseClients) Close() {
	if fc == nil || fc.Firestore == nil {
		return
	}
	if err := fc.Firestore.Close(); err != nil {
		logrus.Errorf("Error closing Firestore: %v", err)
	}
}

// InitializeStorage opens a Cloud Storage client for photo uploads. It
// returns nil when no bucket is configured.
func InitializeStorage(ctx context.Context, cfg *Config) (*storage.Client, error) {
	if cfg.StorageBucket == "" {
		return nil, nil
	}
	client, err := storage.NewClient(ctx, cfg.firebaseOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloud Storage: %w", err)
	}
	return client, nil
}
