package config

import (
	"context"
	"fmt"
	"safegate/interfaces"
	"safegate/repositories"
	"safegate/services"

	"cloud.google.com/go/storage"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// ReportBackend is the remote report store plus the optional photo
// attachment side of it.
type ReportBackend struct {
	Remote   interfaces.RemoteReportService
	Attacher interfaces.PhotoAttacher
}

// InitializeReportBackend picks the RemoteReportService named by
// REPORT_BACKEND. db and rdb may be nil for the memory backend.
func InitializeReportBackend(cfg *Config, db *mongo.Database, rdb *redis.Client, fb *FirebaseClients) (*ReportBackend, error) {
	var push interfaces.PushSender
	if fb != nil && fb.Messaging != nil {
		push = services.NewFCMPushSender(fb.Messaging)
	}

	switch cfg.ReportBackend {
	case "mongo":
		if db == nil {
			return nil, fmt.Errorf("mongo backend requires a database connection")
		}
		var notifier services.ChangeNotifier
		if rdb != nil {
			notifier = services.NewRedisChangeNotifier(rdb)
		} else {
			notifier = services.NewLocalChangeNotifier()
		}
		responders := services.NewResponderNotifier(repositories.NewResponderRepository(db), push)
		remote := services.NewMongoReportService(
			repositories.NewEmergencyRepository(db),
			repositories.NewLocationRepository(db),
			notifier,
			responders,
		)
		return &ReportBackend{Remote: remote, Attacher: remote}, nil

	case "firestore":
		if fb == nil || fb.Firestore == nil {
			return nil, fmt.Errorf("firestore backend requires Firebase credentials")
		}
		remote := services.NewFirestoreReportService(fb.Firestore)
		remote.WithResponders(services.NewResponderNotifier(remote, push))
		return &ReportBackend{Remote: remote, Attacher: remote}, nil

	case "memory":
		logrus.Warn("Using in-memory report store, reports are lost on restart")
		remote := services.NewMemoryReportService()
		return &ReportBackend{Remote: remote, Attacher: remote}, nil
	}
	return nil, fmt.Errorf("unknown REPORT_BACKEND %q", cfg.ReportBackend)
}

// InitializeMediaService stores photos in Cloud Storage, or on local disk
// when UPLOAD_DIR is set. It returns nil when neither is configured.
func InitializeMediaService(ctx context.Context, cfg *Config, backend *ReportBackend) (*services.MediaService, *storage.Client, error) {
	gcs, err := InitializeStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if gcs != nil {
		store := services.NewGCSObjectStore(gcs, cfg.StorageBucket)
		return services.NewMediaService(store, backend.Attacher), gcs, nil
	}
	if cfg.UploadDir != "" {
		store := services.NewLocalObjectStore(cfg.UploadDir, cfg.UploadBaseURL)
		return services.NewMediaService(store, backend.Attacher), nil, nil
	}
	logrus.Warn("No photo storage configured, uploads are disabled")
	return nil, nil, nil
}

// InitializeTokenVerifier accepts app-issued JWTs and, when enabled,
// Firebase ID tokens.
func InitializeTokenVerifier(jwt services.TokenVerifier, fb *FirebaseClients) services.TokenVerifier {
	if fb == nil || fb.Auth == nil {
		return jwt
	}
	return services.ChainVerifier{jwt, services.NewFirebaseVerifier(fb.Auth)}
}
