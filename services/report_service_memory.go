package services

import (
	"context"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"sort"
	"sync"
	"time"
)

// MemoryReportService keeps reports in process. It backs development runs
// and tests, and behaves like the document stores for ordering, limits and
// subscriptions.
type MemoryReportService struct {
	mu        sync.RWMutex
	reports   map[string]*models.EmergencyReport
	locations map[string][]models.LocationRecord
	notifier  ChangeNotifier
	now       func() time.Time
}

func NewMemoryReportService() *MemoryReportService {
	return &MemoryReportService{
		reports:   make(map[string]*models.EmergencyReport),
		locations: make(map[string][]models.LocationRecord),
		notifier:  NewLocalChangeNotifier(),
		now:       time.Now,
	}
}

func (s *MemoryReportService) CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error) {
	stored := report.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	s.mu.Lock()
	if _, exists := s.reports[stored.ID]; exists {
		s.mu.Unlock()
		return stored.ID, nil
	}
	s.reports[stored.ID] = stored
	s.mu.Unlock()

	s.notifier.Publish(ctx, stored.ID)
	return stored.ID, nil
}

func (s *MemoryReportService) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, actorID, notes string) error {
	if !status.IsValid() {
		return utils.NewBadRequestError("invalid report status")
	}

	s.mu.Lock()
	report, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return utils.NewEmergencyNotFoundError()
	}
	report.ApplyStatus(status, actorID, notes, s.now())
	s.mu.Unlock()

	s.notifier.Publish(ctx, id)
	return nil
}

func (s *MemoryReportService) AppendLocation(ctx context.Context, id string, fix models.GeoFix) error {
	s.mu.Lock()
	report, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return utils.NewEmergencyNotFoundError()
	}
	current := fix
	report.CurrentLocation = &current
	report.UpdatedAt = s.now()
	s.locations[id] = append(s.locations[id], models.LocationRecord{
		ReportID: id,
		Fix:      fix,
		Recorded: s.now(),
	})
	s.mu.Unlock()

	s.notifier.Publish(ctx, id)
	return nil
}

func (s *MemoryReportService) list(filter func(*models.EmergencyReport) bool, limit int) []models.EmergencyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := []models.EmergencyReport{}
	for _, report := range s.reports {
		if filter(report) {
			reports = append(reports, *report.Clone())
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports
}

func (s *MemoryReportService) ListActive(_ context.Context) ([]models.EmergencyReport, error) {
	return s.list(func(r *models.EmergencyReport) bool {
		return r.Status == models.ReportStatusActive
	}, 10), nil
}

func (s *MemoryReportService) ListByReporter(_ context.Context, uid string) ([]models.EmergencyReport, error) {
	return s.list(func(r *models.EmergencyReport) bool {
		return r.Reporter.UID == uid
	}, 20), nil
}

func (s *MemoryReportService) Get(id string) (*models.EmergencyReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, false
	}
	return report.Clone(), true
}

func (s *MemoryReportService) Locations(id string) []models.LocationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LocationRecord(nil), s.locations[id]...)
}

func (s *MemoryReportService) LocationHistory(ctx context.Context, id string, limit int) ([]models.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recorded := s.locations[id]
	history := make([]models.LocationRecord, 0, len(recorded))
	for i := len(recorded) - 1; i >= 0; i-- {
		if limit > 0 && len(history) == limit {
			break
		}
		history = append(history, recorded[i])
	}
	return history, nil
}

func (s *MemoryReportService) SubscribeActive(ctx context.Context, onChange func([]models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	unsubscribe, err := watchChanges(ctx, s.notifier, nil, func(ctx context.Context) error {
		reports, _ := s.ListActive(ctx)
		onChange(reports)
		return nil
	}, onError)
	if err != nil {
		return nil, err
	}
	return interfaces.Unsubscribe(unsubscribe), nil
}

func (s *MemoryReportService) SubscribeReport(ctx context.Context, id string, onChange func(*models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	relevant := func(changed string) bool { return changed == id }
	unsubscribe, err := watchChanges(ctx, s.notifier, relevant, func(ctx context.Context) error {
		report, _ := s.Get(id)
		onChange(report)
		return nil
	}, onError)
	if err != nil {
		return nil, err
	}
	return interfaces.Unsubscribe(unsubscribe), nil
}

func (s *MemoryReportService) AttachPhoto(ctx context.Context, id string, photo models.EmergencyPhoto) error {
	s.mu.Lock()
	report, ok := s.reports[id]
	if !ok {
		s.mu.Unlock()
		return utils.NewEmergencyNotFoundError()
	}
	report.Photos = append(report.Photos, photo)
	report.UpdatedAt = s.now()
	s.mu.Unlock()

	s.notifier.Publish(ctx, id)
	return nil
}
