package services

import (
	"context"
	"errors"
	"safegate/interfaces"
	"safegate/models"
	"safegate/repositories"
	"safegate/utils"
	"time"

	"github.com/sirupsen/logrus"
)

// MongoReportService is the default remote report store.
type MongoReportService struct {
	emergencies *repositories.EmergencyRepository
	locations   *repositories.LocationRepository
	notifier    ChangeNotifier
	responders  *ResponderNotifier
	now         func() time.Time
}

func NewMongoReportService(
	emergencies *repositories.EmergencyRepository,
	locations *repositories.LocationRepository,
	notifier ChangeNotifier,
	responders *ResponderNotifier,
) *MongoReportService {
	return &MongoReportService{
		emergencies: emergencies,
		locations:   locations,
		notifier:    notifier,
		responders:  responders,
		now:         time.Now,
	}
}

func (s *MongoReportService) publish(ctx context.Context, id string) {
	if err := s.notifier.Publish(ctx, id); err != nil {
		logrus.WithError(err).Warnf("Failed to publish change for %s", id)
	}
}

// CreateReport inserts the report once. Replays of an existing id are
// accepted without touching the stored document or paging responders again.
func (s *MongoReportService) CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error) {
	created, err := s.emergencies.Insert(ctx, report)
	if err != nil {
		return "", err
	}
	if !created {
		logrus.Debugf("Emergency %s already stored, skipping create", report.ID)
		return report.ID, nil
	}
	s.publish(ctx, report.ID)

	if _, err := s.responders.NotifyNewReport(ctx, report); err != nil {
		logrus.WithError(err).Warnf("Failed to notify responders for %s", report.ID)
	}
	return report.ID, nil
}

func (s *MongoReportService) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, actorID, notes string) error {
	if !status.IsValid() {
		return utils.NewBadRequestError("invalid report status")
	}

	err := s.emergencies.UpdateStatus(ctx, id, status, actorID, notes, s.now())
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NewEmergencyNotFoundError()
	}
	if err != nil {
		return err
	}
	s.publish(ctx, id)
	return nil
}

func (s *MongoReportService) AppendLocation(ctx context.Context, id string, fix models.GeoFix) error {
	err := s.emergencies.SetCurrentLocation(ctx, id, fix)
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NewEmergencyNotFoundError()
	}
	if err != nil {
		return err
	}
	if err := s.locations.Record(ctx, id, fix); err != nil {
		return err
	}
	s.publish(ctx, id)
	return nil
}

func (s *MongoReportService) ListActive(ctx context.Context) ([]models.EmergencyReport, error) {
	return s.emergencies.ListActive(ctx)
}

func (s *MongoReportService) ListByReporter(ctx context.Context, uid string) ([]models.EmergencyReport, error) {
	return s.emergencies.ListByReporter(ctx, uid)
}

func (s *MongoReportService) SubscribeActive(ctx context.Context, onChange func([]models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	unsubscribe, err := watchChanges(ctx, s.notifier, nil, func(ctx context.Context) error {
		reports, err := s.emergencies.ListActive(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() == nil {
			onChange(reports)
		}
		return nil
	}, onError)
	if err != nil {
		return nil, err
	}
	return interfaces.Unsubscribe(unsubscribe), nil
}

func (s *MongoReportService) SubscribeReport(ctx context.Context, id string, onChange func(*models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	relevant := func(changed string) bool { return changed == id }
	unsubscribe, err := watchChanges(ctx, s.notifier, relevant, func(ctx context.Context) error {
		report, err := s.emergencies.GetByID(ctx, id)
		if errors.Is(err, repositories.ErrNotFound) {
			report, err = nil, nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() == nil {
			onChange(report)
		}
		return nil
	}, onError)
	if err != nil {
		return nil, err
	}
	return interfaces.Unsubscribe(unsubscribe), nil
}

func (s *MongoReportService) AttachPhoto(ctx context.Context, id string, photo models.EmergencyPhoto) error {
	err := s.emergencies.AddPhoto(ctx, id, photo)
	if errors.Is(err, repositories.ErrNotFound) {
		return utils.NewEmergencyNotFoundError()
	}
	if err != nil {
		return err
	}
	s.publish(ctx, id)
	return nil
}

// LocationHistory returns the most recent tracked fixes for a report.
func (s *MongoReportService) LocationHistory(ctx context.Context, id string, limit int) ([]models.LocationRecord, error) {
	return s.locations.ListByReport(ctx, id, int64(limit))
}
