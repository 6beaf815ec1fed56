package repositories

import (
	"context"
	"errors"
	"safegate/models"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("not found")

const (
	activeEmergencyLimit   = 10
	reporterEmergencyLimit = 20
)

type EmergencyRepository struct {
	collection *mongo.Collection
}

func NewEmergencyRepository(database *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		collection: database.Collection("emergencies"),
	}
}

// Insert stores a new report under its own id. A report that already
// exists is left untouched and reported as not created, so replays never
// roll back status changes made since.
func (er *EmergencyRepository) Insert(ctx context.Context, report *models.EmergencyReport) (bool, error) {
	if report.UpdatedAt.IsZero() {
		report.UpdatedAt = report.CreatedAt
	}

	_, err := er.collection.InsertOne(ctx, report)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		logrus.Errorf("Failed to insert emergency %s: %v", report.ID, err)
		return false, err
	}
	return true, nil
}

func (er *EmergencyRepository) GetByID(ctx context.Context, id string) (*models.EmergencyReport, error) {
	var report models.EmergencyReport
	err := er.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		logrus.Errorf("Failed to get emergency by ID: %v", err)
		return nil, err
	}
	return &report, nil
}

func (er *EmergencyRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, actorID, notes string, at time.Time) error {
	set := bson.M{
		"status":    status,
		"updatedAt": at,
	}
	switch status {
	case models.ReportStatusAssigned:
		set["assignedTo"] = actorID
	case models.ReportStatusResolved:
		set["resolvedAt"] = at
		set["resolvedBy"] = actorID
	}

	entry := models.TimelineEntry{
		Action:    string(status),
		Actor:     actorID,
		Timestamp: at,
		Notes:     notes,
	}

	result, err := er.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set, "$push": bson.M{"timeline": entry}},
	)
	if err != nil {
		logrus.Errorf("Failed to update emergency status: %v", err)
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (er *EmergencyRepository) SetCurrentLocation(ctx context.Context, id string, fix models.GeoFix) error {
	result, err := er.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"currentLocation": fix, "updatedAt": time.Now()}},
	)
	if err != nil {
		logrus.Errorf("Failed to set current location: %v", err)
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (er *EmergencyRepository) AddPhoto(ctx context.Context, id string, photo models.EmergencyPhoto) error {
	result, err := er.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"photos": photo},
			"$set":  bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		logrus.Errorf("Failed to add emergency photo: %v", err)
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (er *EmergencyRepository) ListActive(ctx context.Context) ([]models.EmergencyReport, error) {
	return er.find(ctx, bson.M{"status": models.ReportStatusActive}, activeEmergencyLimit)
}

func (er *EmergencyRepository) ListByReporter(ctx context.Context, uid string) ([]models.EmergencyReport, error) {
	return er.find(ctx, bson.M{"reporter.uid": uid}, reporterEmergencyLimit)
}

func (er *EmergencyRepository) find(ctx context.Context, filter bson.M, limit int64) ([]models.EmergencyReport, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := er.collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.Errorf("Failed to query emergencies: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	reports := []models.EmergencyReport{}
	if err = cursor.All(ctx, &reports); err != nil {
		logrus.Errorf("Failed to decode emergencies: %v", err)
		return nil, err
	}
	return reports, nil
}
