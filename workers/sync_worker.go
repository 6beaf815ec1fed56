package workers

import (
	"context"
	"fmt"
	"os"
	"safegate/interfaces"
	"safegate/repositories"
	"safegate/services"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	syncLockKey = "locks:sync_worker"
	syncLockTTL = 5 * time.Minute
)

// StoreSource hands out the offline store for a user. Release lets the
// source drop a store the worker no longer needs.
type StoreSource interface {
	Store(uid string) *services.OfflineStore
	Stores() map[string]*services.OfflineStore
	Release(ctx context.Context, uid string) bool
}

// SyncWorker replays reports that were logged locally but never reached
// the remote store.
type SyncWorker struct {
	cron     *cron.Cron
	interval time.Duration

	stores     StoreSource
	kv         repositories.KVStore
	remote     interfaces.RemoteReportService
	instanceID string

	// Serializes runs so a slow pass is never overlapped by the next tick.
	runMutex sync.Mutex

	stats      SyncWorkerStats
	statsMutex sync.RWMutex
}

type SyncWorkerStats struct {
	Runs          int64     `json:"runs"`
	ReportsSynced int64     `json:"reportsSynced"`
	ReportsFailed int64     `json:"reportsFailed"`
	LastRunAt     time.Time `json:"lastRunAt"`
	LastError     string    `json:"lastError,omitempty"`
}

func NewSyncWorker(stores StoreSource, kv repositories.KVStore, remote interfaces.RemoteReportService, interval time.Duration) *SyncWorker {
	instanceID, _ := os.Hostname()
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &SyncWorker{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		interval:   interval,
		stores:     stores,
		kv:         kv,
		remote:     remote,
		instanceID: instanceID,
	}
}

func (sw *SyncWorker) Start() error {
	spec := fmt.Sprintf("@every %s", sw.interval)
	if _, err := sw.cron.AddFunc(spec, sw.runScheduled); err != nil {
		return fmt.Errorf("failed to register sync job: %w", err)
	}

	sw.cron.Start()
	logrus.Infof("Sync Worker started (%s)", spec)
	return nil
}

func (sw *SyncWorker) Stop() {
	ctx := sw.cron.Stop()
	<-ctx.Done()
	logrus.Info("Sync Worker stopped")
}

func (sw *SyncWorker) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Only one instance replays at a time
	acquired, err := sw.kv.SetNX(ctx, syncLockKey, []byte(sw.instanceID), syncLockTTL)
	if err != nil {
		logrus.Errorf("Failed to acquire sync lock: %v", err)
		return
	}
	if !acquired {
		logrus.Debug("Sync already running on another instance, skipping")
		return
	}
	defer func() {
		if err := sw.kv.Delete(context.Background(), syncLockKey); err != nil {
			logrus.Warnf("Failed to release sync lock: %v", err)
		}
	}()

	sw.RunOnce(ctx)
}

// RunOnce walks every known offline store and pushes pending reports.
// It returns the number of reports synced.
func (sw *SyncWorker) RunOnce(ctx context.Context) int {
	sw.runMutex.Lock()
	defer sw.runMutex.Unlock()

	var synced, failed int
	var lastErr error

	for _, uid := range sw.userIDs(ctx) {
		store := sw.stores.Store(uid)
		pending, err := store.Pending(ctx)
		if err != nil {
			logrus.Errorf("Failed to read pending reports for %s: %v", uid, err)
			lastErr = err
			continue
		}

		for _, report := range pending {
			if ctx.Err() != nil {
				break
			}
			if _, err := services.ResyncReport(ctx, store, sw.remote, report.ID); err != nil {
				logrus.WithFields(logrus.Fields{
					"userId":   uid,
					"reportId": report.ID,
				}).Warnf("Report sync failed: %v", err)
				failed++
				lastErr = err
				continue
			}
			synced++
		}
		sw.stores.Release(ctx, uid)
	}

	sw.recordRun(synced, failed, lastErr)
	if synced > 0 || failed > 0 {
		logrus.Infof("Sync pass: %d synced, %d failed", synced, failed)
	}
	return synced
}

// userIDs merges users with an open store and users whose log only exists
// in the KV store, e.g. after a restart.
func (sw *SyncWorker) userIDs(ctx context.Context) []string {
	seen := make(map[string]bool)
	for uid := range sw.stores.Stores() {
		seen[uid] = true
	}

	keys, err := sw.kv.Keys(ctx, services.OfflineLogKeyPrefix)
	if err != nil {
		logrus.Warnf("Failed to scan offline logs: %v", err)
	}
	for _, key := range keys {
		if uid, ok := services.UserIDFromOfflineLogKey(key); ok && uid != "" {
			seen[uid] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for uid := range seen {
		ids = append(ids, uid)
	}
	sort.Strings(ids)
	return ids
}

func (sw *SyncWorker) recordRun(synced, failed int, lastErr error) {
	sw.statsMutex.Lock()
	defer sw.statsMutex.Unlock()

	sw.stats.Runs++
	sw.stats.ReportsSynced += int64(synced)
	sw.stats.ReportsFailed += int64(failed)
	sw.stats.LastRunAt = time.Now()
	sw.stats.LastError = ""
	if lastErr != nil {
		sw.stats.LastError = lastErr.Error()
	}
}

func (sw *SyncWorker) GetStats() SyncWorkerStats {
	sw.statsMutex.RLock()
	defer sw.statsMutex.RUnlock()
	return sw.stats
}
