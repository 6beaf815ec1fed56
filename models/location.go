// models/location.go
package models

import (
	"time"
)

// GeoFix is a single position sample.
type GeoFix struct {
	Latitude       float64   `json:"latitude" bson:"latitude" firestore:"latitude"`
	Longitude      float64   `json:"longitude" bson:"longitude" firestore:"longitude"`
	AccuracyMeters float64   `json:"accuracyMeters" bson:"accuracyMeters" firestore:"accuracyMeters"`
	CapturedAt     time.Time `json:"capturedAt" bson:"capturedAt" firestore:"capturedAt"`
	Fallback       bool      `json:"fallback,omitempty" bson:"fallback,omitempty" firestore:"fallback,omitempty"`
}

// PositionOptions mirrors the device geolocation request options.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

// LocationRecord is one row of the per-report location history.
type LocationRecord struct {
	ReportID string    `json:"reportId" bson:"reportId" firestore:"emergencyId"`
	Fix      GeoFix    `json:"fix" bson:"fix" firestore:"location"`
	Recorded time.Time `json:"recorded" bson:"recorded" firestore:"timestamp"`
}

// DeviceFixRequest is what a device posts back when asked for its position.
// Either a coordinate triple or an error code is set.
type DeviceFixRequest struct {
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	Accuracy  float64  `json:"accuracy"`
	Error     string   `json:"error" validate:"omitempty,oneof=PERMISSION_DENIED POSITION_UNAVAILABLE TIMEOUT"`
}

// LiveLocation is pushed to watchers on every tracker tick.
type LiveLocation struct {
	ReportID           string  `json:"reportId"`
	UserID             string  `json:"userId"`
	Fix                GeoFix  `json:"fix"`
	DistanceFromCampus float64 `json:"distanceFromCampus"`
}

// TrackingStatus describes the caller's live location sharing.
type TrackingStatus struct {
	Running  bool    `json:"running"`
	ReportID string  `json:"reportId,omitempty"`
	LastFix  *GeoFix `json:"lastFix,omitempty"`
}
