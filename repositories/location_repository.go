package repositories

import (
	"context"
	"safegate/models"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LocationRepository keeps the live-tracking history of each emergency.
type LocationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(database *mongo.Database) *LocationRepository {
	return &LocationRepository{
		collection: database.Collection("emergency_locations"),
	}
}

func (lr *LocationRepository) Record(ctx context.Context, reportID string, fix models.GeoFix) error {
	record := models.LocationRecord{
		ReportID: reportID,
		Fix:      fix,
		Recorded: time.Now(),
	}

	if _, err := lr.collection.InsertOne(ctx, record); err != nil {
		logrus.Errorf("Failed to record location for %s: %v", reportID, err)
		return err
	}
	return nil
}

func (lr *LocationRepository) ListByReport(ctx context.Context, reportID string, limit int64) ([]models.LocationRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "recorded", Value: -1}}).
		SetLimit(limit)

	cursor, err := lr.collection.Find(ctx, bson.M{"reportId": reportID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.LocationRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
