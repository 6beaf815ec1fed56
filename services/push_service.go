package services

import (
	"context"
	"fmt"
	"safegate/interfaces"
	"safegate/models"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// FCMPushSender delivers pushes through Firebase Cloud Messaging.
type FCMPushSender struct {
	client *messaging.Client
}

func NewFCMPushSender(client *messaging.Client) *FCMPushSender {
	return &FCMPushSender{client: client}
}

func (ps *FCMPushSender) SendToDevices(ctx context.Context, tokens []string, notification models.PushNotification) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}

	response, err := ps.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return 0, fmt.Errorf("fcm multicast: %w", err)
	}
	if response.FailureCount > 0 {
		logrus.Warnf("FCM push failed for %d of %d devices", response.FailureCount, len(tokens))
	}
	return response.SuccessCount, nil
}

// ResponderNotifier alerts on-duty responders subscribed to a report's type.
type ResponderNotifier struct {
	directory interfaces.ResponderDirectory
	push      interfaces.PushSender
}

func NewResponderNotifier(directory interfaces.ResponderDirectory, push interfaces.PushSender) *ResponderNotifier {
	return &ResponderNotifier{directory: directory, push: push}
}

func ResponderPush(report *models.EmergencyReport) models.PushNotification {
	return models.PushNotification{
		Title: fmt.Sprintf("🚨 %s", report.TypeName),
		Body:  fmt.Sprintf("%s reported an emergency (%s priority)", report.Reporter.Name, report.Priority),
		Data: map[string]string{
			"reportId": report.ID,
			"type":     string(report.Type),
			"priority": string(report.Priority),
			"mapLink":  BuildPayload(report).MapLink,
		},
	}
}

// NotifyNewReport returns the number of devices reached. Failures are
// logged by callers; they never affect the report write.
func (rn *ResponderNotifier) NotifyNewReport(ctx context.Context, report *models.EmergencyReport) (int, error) {
	if rn == nil || rn.directory == nil || rn.push == nil {
		return 0, nil
	}

	responders, err := rn.directory.ActiveResponders(ctx, report.Type)
	if err != nil {
		return 0, err
	}

	var tokens []string
	for _, responder := range responders {
		tokens = append(tokens, responder.DeviceTokens...)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	sent, err := rn.push.SendToDevices(ctx, tokens, ResponderPush(report))
	if err != nil {
		return sent, err
	}
	logrus.WithFields(logrus.Fields{
		"reportId":   report.ID,
		"responders": len(responders),
		"devices":    sent,
	}).Info("Responders notified")
	return sent, nil
}
