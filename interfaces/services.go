package interfaces

import (
	"context"
	"safegate/models"
)

// Unsubscribe stops a push subscription. It is safe to call more than once.
type Unsubscribe func()

// RemoteReportService is the document store behind the emergency flow.
// Subscription callbacks fire on every change, starting with the current
// state; errors are delivered separately and do not end the subscription
// unless the backend gives up.
type RemoteReportService interface {
	CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, actorID, notes string) error
	AppendLocation(ctx context.Context, id string, fix models.GeoFix) error
	// LocationHistory returns up to limit tracked fixes, newest first.
	LocationHistory(ctx context.Context, id string, limit int) ([]models.LocationRecord, error)
	ListActive(ctx context.Context) ([]models.EmergencyReport, error)
	ListByReporter(ctx context.Context, uid string) ([]models.EmergencyReport, error)
	SubscribeActive(ctx context.Context, onChange func([]models.EmergencyReport), onError func(error)) (Unsubscribe, error)
	SubscribeReport(ctx context.Context, id string, onChange func(*models.EmergencyReport), onError func(error)) (Unsubscribe, error)
}

// PhotoAttacher is implemented by report stores that keep photo metadata.
type PhotoAttacher interface {
	AttachPhoto(ctx context.Context, id string, photo models.EmergencyPhoto) error
}

// Broadcaster is the slice of the websocket hub that services push through.
type Broadcaster interface {
	SendToUser(userID string, message models.WSMessage) bool
	Broadcast(message models.WSMessage)
	IsUserOnline(userID string) bool
}

// ResponderDirectory finds responders subscribed to an emergency type.
type ResponderDirectory interface {
	ActiveResponders(ctx context.Context, emergencyType models.EmergencyType) ([]models.Responder, error)
}

// PushSender delivers a push notification to a set of device tokens.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification models.PushNotification) (int, error)
}
