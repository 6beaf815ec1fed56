package services

import (
	"context"
	"encoding/json"
	"errors"
	"safegate/models"
	"safegate/repositories"
	"strings"
	"sync"
	"time"
)

const (
	OfflineStoreCapacity = 10
	OfflineLogKeyPrefix  = "emergencies:"
	currentUserKeyPrefix = "safeGateUser:"
	dashboardRecentCount = 5
)

// OfflineStore is the bounded local log of a user's submitted reports. It
// is a cache for history and resync, never the source of truth.
type OfflineStore struct {
	kv       repositories.KVStore
	userID   string
	capacity int

	mu sync.Mutex
}

func NewOfflineStore(kv repositories.KVStore, userID string) *OfflineStore {
	return &OfflineStore{
		kv:       kv,
		userID:   userID,
		capacity: OfflineStoreCapacity,
	}
}

// OfflineLogKey is the fixed key the user's log is stored under.
func OfflineLogKey(userID string) string {
	return OfflineLogKeyPrefix + userID
}

// UserIDFromOfflineLogKey reverses OfflineLogKey.
func UserIDFromOfflineLogKey(key string) (string, bool) {
	if !strings.HasPrefix(key, OfflineLogKeyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, OfflineLogKeyPrefix), true
}

func (s *OfflineStore) load(ctx context.Context) ([]models.OfflineEntry, error) {
	raw, err := s.kv.Get(ctx, OfflineLogKey(s.userID))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []models.OfflineEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *OfflineStore) save(ctx context.Context, entries []models.OfflineEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, OfflineLogKey(s.userID), raw, 0)
}

// Append pushes the report to the tail and evicts the oldest entries past
// capacity.
func (s *OfflineStore) Append(ctx context.Context, report *models.EmergencyReport, synced bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}

	entries = append(entries, models.OfflineEntry{EmergencyReport: *report.Clone(), Synced: synced})
	if over := len(entries) - s.capacity; over > 0 {
		entries = entries[over:]
	}
	return s.save(ctx, entries)
}

// List returns the stored reports most recent first.
func (s *OfflineStore) List(ctx context.Context) ([]models.EmergencyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]models.EmergencyReport, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		reports = append(reports, entries[i].EmergencyReport)
	}
	return reports, nil
}

// Pending returns entries whose remote write has not succeeded, oldest first.
func (s *OfflineStore) Pending(ctx context.Context) ([]models.EmergencyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var pending []models.EmergencyReport
	for _, e := range entries {
		if !e.Synced {
			pending = append(pending, e.EmergencyReport)
		}
	}
	return pending, nil
}

func (s *OfflineStore) Get(ctx context.Context, id string) (*models.EmergencyReport, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			report := e.EmergencyReport
			return &report, e.Synced, nil
		}
	}
	return nil, false, nil
}

func (s *OfflineStore) MarkSynced(ctx context.Context, id string) error {
	return s.modify(ctx, id, func(e *models.OfflineEntry) { e.Synced = true })
}

// Update applies fn to the stored copy of the report. Missing ids, e.g.
// already evicted ones, are ignored.
func (s *OfflineStore) Update(ctx context.Context, id string, fn func(*models.EmergencyReport)) error {
	return s.modify(ctx, id, func(e *models.OfflineEntry) { fn(&e.EmergencyReport) })
}

func (s *OfflineStore) modify(ctx context.Context, id string, fn func(*models.OfflineEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == id {
			fn(&entries[i])
			return s.save(ctx, entries)
		}
	}
	return nil
}

func (s *OfflineStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, OfflineLogKey(s.userID))
}

// Dashboard summarizes the log the way the home screen shows it.
func (s *OfflineStore) Dashboard(ctx context.Context) (models.Dashboard, error) {
	reports, err := s.List(ctx)
	if err != nil {
		return models.Dashboard{}, err
	}

	dashboard := models.Dashboard{Total: len(reports), Recent: []models.EmergencyReport{}}
	for _, r := range reports {
		if r.Status == models.ReportStatusActive {
			dashboard.ActiveCount++
		}
	}
	if len(reports) > dashboardRecentCount {
		reports = reports[:dashboardRecentCount]
	}
	dashboard.Recent = append(dashboard.Recent, reports...)
	return dashboard, nil
}

// CurrentUserStore persists the signed-in identity next to the log.
type CurrentUserStore struct {
	kv repositories.KVStore
}

func NewCurrentUserStore(kv repositories.KVStore) *CurrentUserStore {
	return &CurrentUserStore{kv: kv}
}

func (s *CurrentUserStore) Save(ctx context.Context, reporter models.Reporter) error {
	raw, err := json.Marshal(models.CurrentUser{
		UID:       reporter.UID,
		Name:      reporter.Name,
		Email:     reporter.Email,
		CampusID:  reporter.CampusID,
		LoginTime: time.Now(),
	})
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, currentUserKeyPrefix+reporter.UID, raw, 0)
}

func (s *CurrentUserStore) Load(ctx context.Context, uid string) (*models.CurrentUser, error) {
	raw, err := s.kv.Get(ctx, currentUserKeyPrefix+uid)
	if err != nil {
		return nil, err
	}
	var user models.CurrentUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *CurrentUserStore) Delete(ctx context.Context, uid string) error {
	return s.kv.Delete(ctx, currentUserKeyPrefix+uid)
}
