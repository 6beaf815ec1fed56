package services

import (
	"context"
	"errors"
	"safegate/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDirectory struct {
	responders []models.Responder
	err        error
	asked      models.EmergencyType
}

func (d *stubDirectory) ActiveResponders(_ context.Context, emergencyType models.EmergencyType) ([]models.Responder, error) {
	d.asked = emergencyType
	return d.responders, d.err
}

type stubPush struct {
	tokens []string
	sent   models.PushNotification
}

func (p *stubPush) SendToDevices(_ context.Context, tokens []string, notification models.PushNotification) (int, error) {
	p.tokens = tokens
	p.sent = notification
	return len(tokens), nil
}

func TestResponderNotifier_NotifyNewReport(t *testing.T) {
	directory := &stubDirectory{responders: []models.Responder{
		{ID: "r1", DeviceTokens: []string{"tok-a", "tok-b"}},
		{ID: "r2", DeviceTokens: []string{"tok-c"}},
	}}
	push := &stubPush{}
	report := testReport("EMG-1", time.Now())

	sent, err := NewResponderNotifier(directory, push).NotifyNewReport(context.Background(), report)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, models.EmergencyTypeMedical, directory.asked)
	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, push.tokens)
	assert.Equal(t, "EMG-1", push.sent.Data["reportId"])
	assert.Contains(t, push.sent.Title, "Medical Emergency")
}

func TestResponderNotifier_NoOpCases(t *testing.T) {
	report := testReport("EMG-1", time.Now())

	var nilNotifier *ResponderNotifier
	sent, err := nilNotifier.NotifyNewReport(context.Background(), report)
	assert.NoError(t, err)
	assert.Zero(t, sent)

	sent, err = NewResponderNotifier(&stubDirectory{}, nil).NotifyNewReport(context.Background(), report)
	assert.NoError(t, err)
	assert.Zero(t, sent)

	push := &stubPush{}
	sent, err = NewResponderNotifier(&stubDirectory{responders: []models.Responder{{ID: "r1"}}}, push).
		NotifyNewReport(context.Background(), report)
	assert.NoError(t, err)
	assert.Zero(t, sent)
	assert.Nil(t, push.tokens)

	_, err = NewResponderNotifier(&stubDirectory{err: errors.New("db down")}, push).
		NotifyNewReport(context.Background(), report)
	assert.Error(t, err)
}
