package services

import (
	"context"
	"errors"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	emergenciesCollection = "emergencies"
	locationsCollection   = "emergency_locations"
	respondersCollection  = "responders"
)

// FirestoreReportService stores reports in Cloud Firestore and uses
// snapshot listeners for subscriptions.
type FirestoreReportService struct {
	client     *firestore.Client
	responders *ResponderNotifier
	now        func() time.Time
}

func NewFirestoreReportService(client *firestore.Client) *FirestoreReportService {
	return &FirestoreReportService{client: client, now: time.Now}
}

// WithResponders enables responder pushes after each create.
func (s *FirestoreReportService) WithResponders(responders *ResponderNotifier) *FirestoreReportService {
	s.responders = responders
	return s
}

func (s *FirestoreReportService) doc(id string) *firestore.DocumentRef {
	return s.client.Collection(emergenciesCollection).Doc(id)
}

func notFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (s *FirestoreReportService) CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error) {
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}
	_, err := s.doc(report.ID).Create(ctx, report)
	if status.Code(err) == codes.AlreadyExists {
		logrus.Debugf("Emergency %s already stored, skipping create", report.ID)
		return report.ID, nil
	}
	if err != nil {
		logrus.Errorf("Failed to write emergency %s to firestore: %v", report.ID, err)
		return "", err
	}

	if _, err := s.responders.NotifyNewReport(ctx, report); err != nil {
		logrus.WithError(err).Warnf("Failed to notify responders for %s", report.ID)
	}
	return report.ID, nil
}

func (s *FirestoreReportService) UpdateStatus(ctx context.Context, id string, reportStatus models.ReportStatus, actorID, notes string) error {
	if !reportStatus.IsValid() {
		return utils.NewBadRequestError("invalid report status")
	}

	now := s.now()
	updates := []firestore.Update{
		{Path: "status", Value: reportStatus},
		{Path: "updatedAt", Value: now},
		{Path: "timeline", Value: firestore.ArrayUnion(models.TimelineEntry{
			Action:    string(reportStatus),
			Actor:     actorID,
			Timestamp: now,
			Notes:     notes,
		})},
	}
	switch reportStatus {
	case models.ReportStatusAssigned:
		updates = append(updates, firestore.Update{Path: "assignedTo", Value: actorID})
	case models.ReportStatusResolved:
		updates = append(updates,
			firestore.Update{Path: "resolvedAt", Value: now},
			firestore.Update{Path: "resolvedBy", Value: actorID},
		)
	}

	if _, err := s.doc(id).Update(ctx, updates); err != nil {
		if notFound(err) {
			return utils.NewEmergencyNotFoundError()
		}
		return err
	}
	return nil
}

func (s *FirestoreReportService) AppendLocation(ctx context.Context, id string, fix models.GeoFix) error {
	_, err := s.doc(id).Update(ctx, []firestore.Update{
		{Path: "currentLocation", Value: fix},
		{Path: "updatedAt", Value: s.now()},
	})
	if err != nil {
		if notFound(err) {
			return utils.NewEmergencyNotFoundError()
		}
		return err
	}

	_, _, err = s.client.Collection(locationsCollection).Add(ctx, models.LocationRecord{
		ReportID: id,
		Fix:      fix,
		Recorded: s.now(),
	})
	return err
}

func (s *FirestoreReportService) activeQuery() firestore.Query {
	return s.client.Collection(emergenciesCollection).
		Where("status", "==", models.ReportStatusActive).
		OrderBy("createdAt", firestore.Desc).
		Limit(10)
}

func (s *FirestoreReportService) reporterQuery(uid string) firestore.Query {
	return s.client.Collection(emergenciesCollection).
		Where("reporter.uid", "==", uid).
		OrderBy("createdAt", firestore.Desc).
		Limit(20)
}

func decodeReports(iter *firestore.DocumentIterator) ([]models.EmergencyReport, error) {
	defer iter.Stop()

	reports := []models.EmergencyReport{}
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var report models.EmergencyReport
		if err := snapshot.DataTo(&report); err != nil {
			return nil, err
		}
		if report.ID == "" {
			report.ID = snapshot.Ref.ID
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *FirestoreReportService) ListActive(ctx context.Context) ([]models.EmergencyReport, error) {
	return decodeReports(s.activeQuery().Documents(ctx))
}

func (s *FirestoreReportService) ListByReporter(ctx context.Context, uid string) ([]models.EmergencyReport, error) {
	return decodeReports(s.reporterQuery(uid).Documents(ctx))
}

func (s *FirestoreReportService) LocationHistory(ctx context.Context, id string, limit int) ([]models.LocationRecord, error) {
	query := s.client.Collection(locationsCollection).
		Where("emergencyId", "==", id).
		OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	history := []models.LocationRecord{}
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var record models.LocationRecord
		if err := snapshot.DataTo(&record); err != nil {
			return nil, err
		}
		history = append(history, record)
	}
	return history, nil
}

// listenerClosed reports whether a snapshot error just means the listener
// was stopped.
func listenerClosed(ctx context.Context, err error) bool {
	return ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done)
}

func (s *FirestoreReportService) SubscribeActive(ctx context.Context, onChange func([]models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := s.activeQuery().Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snapshot, err := snapshots.Next()
			if err != nil {
				if !listenerClosed(ctx, err) && onError != nil {
					onError(err)
				}
				return
			}
			reports, err := decodeReports(snapshot.Documents)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(reports)
		}
	}()

	return interfaces.Unsubscribe(cancel), nil
}

func (s *FirestoreReportService) SubscribeReport(ctx context.Context, id string, onChange func(*models.EmergencyReport), onError func(error)) (interfaces.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := s.doc(id).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snapshot, err := snapshots.Next()
			if err != nil {
				if !listenerClosed(ctx, err) && onError != nil {
					onError(err)
				}
				return
			}
			if !snapshot.Exists() {
				onChange(nil)
				continue
			}
			var report models.EmergencyReport
			if err := snapshot.DataTo(&report); err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			onChange(&report)
		}
	}()

	return interfaces.Unsubscribe(cancel), nil
}

func (s *FirestoreReportService) AttachPhoto(ctx context.Context, id string, photo models.EmergencyPhoto) error {
	_, err := s.doc(id).Update(ctx, []firestore.Update{
		{Path: "photos", Value: firestore.ArrayUnion(photo)},
		{Path: "updatedAt", Value: s.now()},
	})
	if notFound(err) {
		return utils.NewEmergencyNotFoundError()
	}
	return err
}

// ActiveResponders lets the Firestore backend double as the responder
// directory.
func (s *FirestoreReportService) ActiveResponders(ctx context.Context, emergencyType models.EmergencyType) ([]models.Responder, error) {
	iter := s.client.Collection(respondersCollection).
		Where("status", "==", models.ResponderStatusActive).
		Where("types", "array-contains", emergencyType).
		Documents(ctx)
	defer iter.Stop()

	var responders []models.Responder
	for {
		snapshot, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var responder models.Responder
		if err := snapshot.DataTo(&responder); err != nil {
			logrus.Warnf("Skipping malformed responder %s: %v", snapshot.Ref.ID, err)
			continue
		}
		responder.ID = snapshot.Ref.ID
		responders = append(responders, responder)
	}
	return responders, nil
}
