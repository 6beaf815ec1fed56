// models/websocket.go
package models

import (
	"encoding/json"
	"time"
)

type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	UserID    string      `json:"userId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

// WSRequest is an inbound frame from a device. Data is decoded per type.
type WSRequest struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"requestId,omitempty"`
}

type WSWatchReport struct {
	ReportID string `json:"reportId"`
}

type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Device to server
const (
	WSTypeLocationUpdate = "location_update"
	WSTypeLocationError  = "location_error"
	WSTypeWatchReport    = "watch_report"
	WSTypeUnwatchReport  = "unwatch_report"
	WSTypePing           = "ping"
)

// Server to device
const (
	WSTypeLocationRequest   = "location_request"
	WSTypeLiveLocation      = "live_location"
	WSTypeWizardStep        = "wizard_step"
	WSTypeActiveEmergencies = "active_emergencies"
	WSTypeReportUpdate      = "report_update"
	WSTypePong              = "pong"
	WSTypeError             = "error"
)

const (
	WSErrorInvalidMessage = "INVALID_MESSAGE"
	WSErrorUnknownType    = "UNKNOWN_TYPE"
	WSErrorSubscription   = "SUBSCRIPTION_FAILED"
	WSErrorRateLimit      = "RATE_LIMIT"
)
