package repositories

import (
	"context"
	"safegate/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ResponderRepository struct {
	collection *mongo.Collection
}

func NewResponderRepository(database *mongo.Database) *ResponderRepository {
	return &ResponderRepository{
		collection: database.Collection("responders"),
	}
}

// ActiveResponders returns on-duty responders subscribed to the type.
func (rr *ResponderRepository) ActiveResponders(ctx context.Context, emergencyType models.EmergencyType) ([]models.Responder, error) {
	cursor, err := rr.collection.Find(ctx, bson.M{
		"status": models.ResponderStatusActive,
		"types":  emergencyType,
	})
	if err != nil {
		logrus.Errorf("Failed to query responders: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var responders []models.Responder
	if err := cursor.All(ctx, &responders); err != nil {
		return nil, err
	}
	return responders, nil
}
