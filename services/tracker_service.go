package services

import (
	"context"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTrackingInterval = 10 * time.Second

// LiveTracker re-samples the user's position while an emergency is live
// and shares every fix. A tracker runs at most one loop; starting it for a
// different report replaces the running loop.
type LiveTracker struct {
	userID      string
	location    *LocationProvider
	remote      interfaces.RemoteReportService
	broadcaster interfaces.Broadcaster
	interval    time.Duration
	baseCtx     context.Context

	control sync.Mutex // serializes Start and Stop

	mu       sync.RWMutex
	task     *utils.PeriodicTask
	reportID string
	lastFix  *models.GeoFix
}

func NewLiveTracker(
	ctx context.Context,
	userID string,
	location *LocationProvider,
	remote interfaces.RemoteReportService,
	broadcaster interfaces.Broadcaster,
	interval time.Duration,
) *LiveTracker {
	if interval <= 0 {
		interval = DefaultTrackingInterval
	}
	return &LiveTracker{
		userID:      userID,
		location:    location,
		remote:      remote,
		broadcaster: broadcaster,
		interval:    interval,
		baseCtx:     ctx,
	}
}

// Start begins sharing location for reportID. Calling it again for the
// running report is a no-op.
func (t *LiveTracker) Start(reportID string) {
	t.control.Lock()
	defer t.control.Unlock()

	t.mu.RLock()
	running := t.task != nil && t.task.IsRunning()
	current := t.reportID
	t.mu.RUnlock()
	if running && current == reportID {
		return
	}

	t.stopLocked()

	var lastCapturedAt time.Time
	task := utils.NewPeriodicTask(t.interval, func(ctx context.Context) {
		t.tick(ctx, reportID, &lastCapturedAt)
	})

	t.mu.Lock()
	t.task = task
	t.reportID = reportID
	t.lastFix = nil
	t.mu.Unlock()

	task.Start(t.baseCtx, false)

	logrus.WithFields(logrus.Fields{
		"userId":   t.userID,
		"reportId": reportID,
		"interval": t.interval,
	}).Info("Live location sharing started")
}

func (t *LiveTracker) Stop() {
	t.control.Lock()
	defer t.control.Unlock()
	t.stopLocked()
}

func (t *LiveTracker) stopLocked() {
	t.mu.Lock()
	task := t.task
	reportID := t.reportID
	t.task = nil
	t.reportID = ""
	t.mu.Unlock()

	if task == nil {
		return
	}
	task.Stop()
	logrus.WithFields(logrus.Fields{
		"userId":   t.userID,
		"reportId": reportID,
	}).Info("Live location sharing stopped")
}

func (t *LiveTracker) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.task != nil && t.task.IsRunning()
}

func (t *LiveTracker) ReportID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.reportID
}

func (t *LiveTracker) LastFix() *models.GeoFix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastFix == nil {
		return nil
	}
	fix := *t.lastFix
	return &fix
}

func (t *LiveTracker) tick(ctx context.Context, reportID string, lastCapturedAt *time.Time) {
	fix, err := t.location.Sample(ctx, t.userID)
	if err != nil {
		logrus.WithError(err).Debugf("Live location sample skipped for %s", reportID)
		return
	}

	if fix.CapturedAt.Before(*lastCapturedAt) {
		fix.CapturedAt = *lastCapturedAt
	}
	*lastCapturedAt = fix.CapturedAt

	t.mu.Lock()
	if t.reportID == reportID {
		stored := fix
		t.lastFix = &stored
	}
	t.mu.Unlock()

	if t.broadcaster != nil {
		t.broadcaster.SendToUser(t.userID, utils.WSEvent(models.WSTypeLiveLocation, models.LiveLocation{
			ReportID:           reportID,
			UserID:             t.userID,
			Fix:                fix,
			DistanceFromCampus: t.location.DistanceFromCampus(fix),
		}))
	}

	if err := t.remote.AppendLocation(ctx, reportID, fix); err != nil {
		logrus.WithError(err).Warnf("Failed to share live location for %s", reportID)
	}
}
