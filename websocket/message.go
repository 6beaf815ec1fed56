package websocket

import (
	"context"
	"encoding/json"
	"safegate/models"
	"safegate/services"
	"safegate/utils"
	"strings"
)

// RouteError is reported back to the device as an error frame.
type RouteError struct {
	Code    string
	Message string
}

func (e *RouteError) Error() string {
	return e.Code + ": " + e.Message
}

func invalidMessage(message string) error {
	return &RouteError{Code: models.WSErrorInvalidMessage, Message: message}
}

// MessageProcessor handles one inbound message type. A non-nil reply is
// sent back to the originating device only.
type MessageProcessor func(ctx context.Context, userID string, data json.RawMessage) (*models.WSMessage, error)

type MessageRouter struct {
	processors map[string]MessageProcessor
}

func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{processors: make(map[string]MessageProcessor)}
	router.RegisterHandler(models.WSTypePing, func(context.Context, string, json.RawMessage) (*models.WSMessage, error) {
		reply := utils.WSEvent(models.WSTypePong, nil)
		return &reply, nil
	})
	return router
}

func (mr *MessageRouter) RegisterHandler(messageType string, processor MessageProcessor) {
	mr.processors[messageType] = processor
}

func (mr *MessageRouter) Route(ctx context.Context, userID string, request models.WSRequest) (*models.WSMessage, error) {
	processor, ok := mr.processors[request.Type]
	if !ok {
		return nil, &RouteError{Code: models.WSErrorUnknownType, Message: "Unknown message type: " + request.Type}
	}
	return processor(ctx, userID, request.Data)
}

// NewDeviceRouter wires the device protocol: location replies go to the
// geolocator, watch requests to the report feed.
func NewDeviceRouter(geolocator *services.DeviceGeolocator, feed *services.ReportFeedService) *MessageRouter {
	router := NewMessageRouter()
	validator := utils.NewValidationService()

	locationReply := func(ctx context.Context, userID string, data json.RawMessage) (*models.WSMessage, error) {
		var reply models.DeviceFixRequest
		if err := json.Unmarshal(data, &reply); err != nil {
			return nil, invalidMessage("Invalid location payload")
		}
		if fieldErrors := validator.ValidateStruct(reply); len(fieldErrors) > 0 {
			return nil, invalidMessage(fieldErrors[0].Message)
		}
		if _, err := geolocator.HandleDeviceReply(userID, reply); err != nil {
			return nil, invalidMessage(err.Error())
		}
		return nil, nil
	}

	router.RegisterHandler(models.WSTypeLocationUpdate, locationReply)
	router.RegisterHandler(models.WSTypeLocationError, func(ctx context.Context, userID string, data json.RawMessage) (*models.WSMessage, error) {
		var reply models.DeviceFixRequest
		if err := json.Unmarshal(data, &reply); err != nil || reply.Error == "" {
			return nil, invalidMessage("location_error requires an error code")
		}
		return locationReply(ctx, userID, data)
	})

	watchTarget := func(data json.RawMessage) (string, error) {
		var watch models.WSWatchReport
		if err := json.Unmarshal(data, &watch); err != nil {
			return "", invalidMessage("Invalid watch payload")
		}
		watch.ReportID = strings.TrimSpace(watch.ReportID)
		if watch.ReportID == "" {
			return "", invalidMessage("reportId is required")
		}
		return watch.ReportID, nil
	}

	router.RegisterHandler(models.WSTypeWatchReport, func(ctx context.Context, userID string, data json.RawMessage) (*models.WSMessage, error) {
		reportID, err := watchTarget(data)
		if err != nil {
			return nil, err
		}
		// Watches outlive the frame that created them.
		if err := feed.Watch(context.WithoutCancel(ctx), userID, reportID); err != nil {
			return nil, &RouteError{Code: models.WSErrorSubscription, Message: err.Error()}
		}
		return nil, nil
	})
	router.RegisterHandler(models.WSTypeUnwatchReport, func(ctx context.Context, userID string, data json.RawMessage) (*models.WSMessage, error) {
		reportID, err := watchTarget(data)
		if err != nil {
			return nil, err
		}
		feed.Unwatch(userID, reportID)
		return nil, nil
	})

	return router
}
