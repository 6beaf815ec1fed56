package services

import (
	"context"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"sync"

	"github.com/sirupsen/logrus"
)

// ReportFeedService bridges report store subscriptions to websocket
// clients: the active emergencies feed goes to everyone, single report
// watches go to the user that asked.
type ReportFeedService struct {
	remote      interfaces.RemoteReportService
	broadcaster interfaces.Broadcaster

	mu      sync.Mutex
	watches map[string]map[string]interfaces.Unsubscribe
	active  interfaces.Unsubscribe
}

func NewReportFeedService(remote interfaces.RemoteReportService, broadcaster interfaces.Broadcaster) *ReportFeedService {
	return &ReportFeedService{
		remote:      remote,
		broadcaster: broadcaster,
		watches:     make(map[string]map[string]interfaces.Unsubscribe),
	}
}

// StartActiveFeed broadcasts the active list on every change.
func (fs *ReportFeedService) StartActiveFeed(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.active != nil {
		return nil
	}

	unsubscribe, err := fs.remote.SubscribeActive(ctx, func(reports []models.EmergencyReport) {
		fs.broadcaster.Broadcast(utils.WSEvent(models.WSTypeActiveEmergencies, reports))
	}, func(err error) {
		logrus.WithError(err).Error("Active emergencies subscription error")
	})
	if err != nil {
		return err
	}
	fs.active = unsubscribe
	return nil
}

// Watch pushes report_update to userID whenever reportID changes.
func (fs *ReportFeedService) Watch(ctx context.Context, userID, reportID string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.watches[userID][reportID]; ok {
		return nil
	}

	unsubscribe, err := fs.remote.SubscribeReport(ctx, reportID, func(report *models.EmergencyReport) {
		if report == nil {
			return
		}
		fs.broadcaster.SendToUser(userID, utils.WSEvent(models.WSTypeReportUpdate, report))
	}, func(err error) {
		fs.broadcaster.SendToUser(userID, utils.WSErrorEvent("", models.WSErrorSubscription, err.Error()))
	})
	if err != nil {
		return err
	}

	if fs.watches[userID] == nil {
		fs.watches[userID] = make(map[string]interfaces.Unsubscribe)
	}
	fs.watches[userID][reportID] = unsubscribe
	return nil
}

func (fs *ReportFeedService) Unwatch(userID, reportID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if unsubscribe, ok := fs.watches[userID][reportID]; ok {
		unsubscribe()
		delete(fs.watches[userID], reportID)
	}
	if len(fs.watches[userID]) == 0 {
		delete(fs.watches, userID)
	}
}

// UnwatchAll drops every watch held for userID.
func (fs *ReportFeedService) UnwatchAll(userID string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, unsubscribe := range fs.watches[userID] {
		unsubscribe()
	}
	delete(fs.watches, userID)
}

func (fs *ReportFeedService) Watching(userID string) []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	ids := make([]string, 0, len(fs.watches[userID]))
	for id := range fs.watches[userID] {
		ids = append(ids, id)
	}
	return ids
}

func (fs *ReportFeedService) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.active != nil {
		fs.active()
		fs.active = nil
	}
	for userID, watches := range fs.watches {
		for _, unsubscribe := range watches {
			unsubscribe()
		}
		delete(fs.watches, userID)
	}
}
