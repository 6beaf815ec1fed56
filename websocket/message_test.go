package websocket

import (
	"context"
	"encoding/json"
	"safegate/models"
	"safegate/services"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func route(t *testing.T, router *MessageRouter, msgType, data string) (*models.WSMessage, error) {
	t.Helper()
	return router.Route(context.Background(), "user-1", models.WSRequest{Type: msgType, Data: json.RawMessage(data)})
}

func requireRouteError(t *testing.T, err error, code string) {
	t.Helper()
	var routeErr *RouteError
	require.ErrorAs(t, err, &routeErr)
	assert.Equal(t, code, routeErr.Code)
}

func TestMessageRouter_Ping(t *testing.T) {
	reply, err := route(t, NewMessageRouter(), models.WSTypePing, `{}`)
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, models.WSTypePong, reply.Type)
}

func TestMessageRouter_UnknownType(t *testing.T) {
	_, err := route(t, NewMessageRouter(), "teleport", `{}`)
	requireRouteError(t, err, models.WSErrorUnknownType)
}

func TestDeviceRouter_Validation(t *testing.T) {
	remote := services.NewMemoryReportService()
	router := NewDeviceRouter(services.NewDeviceGeolocator(NewHub()), services.NewReportFeedService(remote, NewHub()))

	tests := []struct {
		name    string
		msgType string
		data    string
	}{
		{"location not json", models.WSTypeLocationUpdate, `"nope"`},
		{"latitude out of range", models.WSTypeLocationUpdate, `{"latitude": 120, "longitude": 80}`},
		{"missing longitude", models.WSTypeLocationUpdate, `{"latitude": 13}`},
		{"unknown error code", models.WSTypeLocationUpdate, `{"error": "BATTERY_LOW"}`},
		{"location_error without code", models.WSTypeLocationError, `{}`},
		{"watch without id", models.WSTypeWatchReport, `{"reportId": "  "}`},
		{"unwatch not json", models.WSTypeUnwatchReport, `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := route(t, router, tt.msgType, tt.data)
			requireRouteError(t, err, models.WSErrorInvalidMessage)
		})
	}
}

func TestDeviceRouter_AcceptsUnsolicitedFix(t *testing.T) {
	router := NewDeviceRouter(services.NewDeviceGeolocator(NewHub()), services.NewReportFeedService(services.NewMemoryReportService(), NewHub()))

	reply, err := route(t, router, models.WSTypeLocationUpdate, `{"latitude": 13.08, "longitude": 80.27, "accuracy": 5}`)
	assert.NoError(t, err)
	assert.Nil(t, reply)

	reply, err = route(t, router, models.WSTypeLocationError, `{"error": "PERMISSION_DENIED"}`)
	assert.NoError(t, err)
	assert.Nil(t, reply)
}
