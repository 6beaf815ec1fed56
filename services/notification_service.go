package services

import (
	"context"
	"errors"
	"fmt"
	"safegate/models"
	"safegate/repositories"
	"safegate/utils"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultChannelTimeout = 20 * time.Second
	deliveryLedgerTTL     = 24 * time.Hour
	geocodeTimeout        = 3 * time.Second
	noDescriptionText     = "No additional details provided"
)

// ChannelSender delivers a report summary over one notification channel.
type ChannelSender interface {
	Send(ctx context.Context, payload models.NotificationPayload) error
}

// Geocoder turns a coordinate into a human readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// DeliveryLedger remembers which (channel, report) pairs were delivered so
// repeated dispatches do not notify twice. A pair is reserved before the
// send and released again if the send fails.
type DeliveryLedger interface {
	Delivered(ctx context.Context, channel models.NotificationChannel, reportID string) (bool, error)
	Reserve(ctx context.Context, channel models.NotificationChannel, reportID string) (bool, error)
	Release(ctx context.Context, channel models.NotificationChannel, reportID string) error
}

type KVDeliveryLedger struct {
	kv  repositories.KVStore
	ttl time.Duration
}

func NewKVDeliveryLedger(kv repositories.KVStore) *KVDeliveryLedger {
	return &KVDeliveryLedger{kv: kv, ttl: deliveryLedgerTTL}
}

func ledgerKey(channel models.NotificationChannel, reportID string) string {
	return fmt.Sprintf("dispatch:%s:%s", channel, reportID)
}

func (l *KVDeliveryLedger) Delivered(ctx context.Context, channel models.NotificationChannel, reportID string) (bool, error) {
	_, err := l.kv.Get(ctx, ledgerKey(channel, reportID))
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Reserve claims the pair. False means another dispatch already sent it or
// is sending it now.
func (l *KVDeliveryLedger) Reserve(ctx context.Context, channel models.NotificationChannel, reportID string) (bool, error) {
	return l.kv.SetNX(ctx, ledgerKey(channel, reportID), []byte(time.Now().UTC().Format(time.RFC3339)), l.ttl)
}

func (l *KVDeliveryLedger) Release(ctx context.Context, channel models.NotificationChannel, reportID string) error {
	return l.kv.Delete(ctx, ledgerKey(channel, reportID))
}

// NotificationDispatcher fans a submitted report out to SMS, email and call.
// Channels run concurrently and fail independently.
type NotificationDispatcher struct {
	senders  map[models.NotificationChannel]ChannelSender
	ledger   DeliveryLedger
	geocoder Geocoder
	timeout  time.Duration
}

func NewNotificationDispatcher(sms, email, call ChannelSender, ledger DeliveryLedger) *NotificationDispatcher {
	senders := make(map[models.NotificationChannel]ChannelSender)
	if sms != nil {
		senders[models.ChannelSMS] = sms
	}
	if email != nil {
		senders[models.ChannelEmail] = email
	}
	if call != nil {
		senders[models.ChannelCall] = call
	}
	return &NotificationDispatcher{
		senders: senders,
		ledger:  ledger,
		timeout: defaultChannelTimeout,
	}
}

// WithGeocoder adds a reverse-geocoded address to every payload.
func (d *NotificationDispatcher) WithGeocoder(geocoder Geocoder) *NotificationDispatcher {
	d.geocoder = geocoder
	return d
}

// BuildPayload renders the canonical channel summary for a report.
func BuildPayload(report *models.EmergencyReport) models.NotificationPayload {
	description := strings.TrimSpace(report.Description)
	if description == "" {
		description = noDescriptionText
	}
	typeName := report.TypeName
	if typeName == "" {
		typeName = report.Type.DisplayName()
	}
	return models.NotificationPayload{
		ReportID:    report.ID,
		Type:        string(report.Type),
		TypeName:    typeName,
		Priority:    report.Priority,
		MapLink:     utils.MapLink(report.Location.Latitude, report.Location.Longitude),
		Timestamp:   report.CreatedAt.UTC().Format(time.RFC3339),
		Description: description,
		Reporter: models.PayloadReporter{
			Name:  report.Reporter.Name,
			Email: report.Reporter.Email,
		},
	}
}

func enabledChannels(prefs models.NotificationPrefs) map[models.NotificationChannel]bool {
	return map[models.NotificationChannel]bool{
		models.ChannelSMS:   prefs.SMS,
		models.ChannelEmail: prefs.Email,
		models.ChannelCall:  prefs.Call,
	}
}

// Dispatch never fails as a whole. Per-channel outcomes and the partial
// failure flag are reported on the result.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, report *models.EmergencyReport, prefs models.NotificationPrefs) models.DispatchResult {
	payload := BuildPayload(report)
	if d.geocoder != nil {
		gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
		if address, err := d.geocoder.ReverseGeocode(gctx, report.Location.Latitude, report.Location.Longitude); err == nil {
			payload.Address = address
		} else {
			logrus.WithError(err).Debug("Reverse geocode failed")
		}
		cancel()
	}

	var (
		result models.DispatchResult
		mu     sync.Mutex
		wg     sync.WaitGroup
	)

	enabled := enabledChannels(prefs)
	for _, channel := range []models.NotificationChannel{models.ChannelSMS, models.ChannelEmail, models.ChannelCall} {
		sender, configured := d.senders[channel]
		if !enabled[channel] || !configured {
			result.Skipped = append(result.Skipped, channel)
			continue
		}

		wg.Add(1)
		go func(channel models.NotificationChannel, sender ChannelSender) {
			defer wg.Done()
			err := d.deliver(ctx, channel, sender, payload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"reportId": report.ID,
					"channel":  channel,
				}).WithError(err).Error("Notification channel failed")
				result.MarkFailed(channel, err.Error())
				return
			}
			result.MarkDelivered(channel)
		}(channel, sender)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"reportId":       report.ID,
		"sms":            result.SMS,
		"email":          result.Email,
		"call":           result.Call,
		"partialFailure": result.PartialFailure,
	}).Info("Emergency notifications dispatched")

	return result
}

func (d *NotificationDispatcher) deliver(ctx context.Context, channel models.NotificationChannel, sender ChannelSender, payload models.NotificationPayload) error {
	reserved := false
	if d.ledger != nil {
		ok, lerr := d.ledger.Reserve(ctx, channel, payload.ReportID)
		switch {
		case lerr != nil:
			logrus.WithError(lerr).Warn("Delivery ledger reservation failed")
		case !ok:
			logrus.Debugf("%s already delivered for %s", channel, payload.ReportID)
			return nil
		default:
			reserved = true
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.send(sendCtx, sender, payload); err != nil {
		if reserved {
			if lerr := d.ledger.Release(ctx, channel, payload.ReportID); lerr != nil {
				logrus.WithError(lerr).Warn("Failed to release delivery reservation")
			}
		}
		return &utils.DispatchError{Channel: string(channel), ReportID: payload.ReportID, Cause: err}
	}
	return nil
}

// send turns a provider panic into an error.
func (d *NotificationDispatcher) send(ctx context.Context, sender ChannelSender, payload models.NotificationPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sender.Send(ctx, payload)
}

// LogSender stands in for a channel with no provider configured.
type LogSender struct {
	Channel models.NotificationChannel
}

func (s LogSender) Send(_ context.Context, payload models.NotificationPayload) error {
	logrus.WithFields(logrus.Fields{
		"channel":  s.Channel,
		"reportId": payload.ReportID,
		"type":     payload.TypeName,
		"mapLink":  payload.MapLink,
	}).Info("Notification provider not configured, logging alert")
	return nil
}

func (s LogSender) SendWelcome(_ context.Context, reporter models.Reporter) error {
	logrus.WithFields(logrus.Fields{
		"userId": reporter.UID,
		"email":  reporter.Email,
	}).Info("Email provider not configured, logging welcome email")
	return nil
}

// sendToAll calls send for every recipient and fails only when none
// succeeded.
func sendToAll(recipients []string, send func(to string) error) error {
	if len(recipients) == 0 {
		return errors.New("no recipients configured")
	}

	var errs []error
	for _, to := range recipients {
		if err := send(to); err != nil {
			logrus.WithError(err).Warnf("Delivery to %s failed", to)
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	if len(errs) == len(recipients) {
		return errors.Join(errs...)
	}
	return nil
}
