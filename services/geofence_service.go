package services

import (
	"context"
	"errors"
	"fmt"
	"safegate/utils"

	"github.com/sirupsen/logrus"
	"googlemaps.github.io/maps"
)

const DefaultCampusRadiusMeters = 1500

// CampusGeofence is a circle around the campus center.
type CampusGeofence struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

func (f CampusGeofence) Distance(lat, lng float64) float64 {
	return utils.CalculateDistance(f.Latitude, f.Longitude, lat, lng)
}

func (f CampusGeofence) Contains(lat, lng float64) bool {
	return f.Distance(lat, lng) <= f.RadiusMeters
}

// GoogleMapsGeocoder resolves coordinates to a formatted address.
type GoogleMapsGeocoder struct {
	client *maps.Client
}

func NewGoogleMapsGeocoder(apiKey string) (*GoogleMapsGeocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return &GoogleMapsGeocoder{client: client}, nil
}

func (g *GoogleMapsGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("reverse geocoding failed: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("no address for location")
	}
	return results[0].FormattedAddress, nil
}

// GeofenceGeocoder labels fixes inside the campus fence. The inner geocoder
// is optional; without it only on-campus fixes get an address.
type GeofenceGeocoder struct {
	fence CampusGeofence
	name  string
	inner Geocoder
}

func NewGeofenceGeocoder(fence CampusGeofence, campusName string, inner Geocoder) *GeofenceGeocoder {
	return &GeofenceGeocoder{fence: fence, name: campusName, inner: inner}
}

func (g *GeofenceGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	onCampus := g.fence.Contains(lat, lng)

	var address string
	var err error
	if g.inner != nil {
		address, err = g.inner.ReverseGeocode(ctx, lat, lng)
		if err != nil {
			logrus.WithError(err).Debug("Reverse geocode failed")
		}
	}

	switch {
	case onCampus && address != "":
		return fmt.Sprintf("%s (on %s)", address, g.name), nil
	case onCampus:
		return fmt.Sprintf("%s, %.0f m from center", g.name, g.fence.Distance(lat, lng)), nil
	case address != "":
		return address, nil
	case err != nil:
		return "", err
	default:
		return "", errors.New("no address for location")
	}
}
