package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFence() CampusGeofence {
	return CampusGeofence{Latitude: testCampusLat, Longitude: testCampusLng, RadiusMeters: DefaultCampusRadiusMeters}
}

func TestCampusGeofence_Contains(t *testing.T) {
	fence := testFence()
	assert.True(t, fence.Contains(testCampusLat, testCampusLng))
	assert.True(t, fence.Contains(testCampusLat+0.005, testCampusLng))
	assert.False(t, fence.Contains(testCampusLat+0.05, testCampusLng))
}

func TestGeofenceGeocoder(t *testing.T) {
	ctx := context.Background()
	onCampus := [2]float64{testCampusLat + 0.001, testCampusLng}
	offCampus := [2]float64{testCampusLat + 0.1, testCampusLng}

	t.Run("on campus without inner geocoder", func(t *testing.T) {
		address, err := NewGeofenceGeocoder(testFence(), "North Campus", nil).ReverseGeocode(ctx, onCampus[0], onCampus[1])
		require.NoError(t, err)
		assert.Contains(t, address, "North Campus")
		assert.Contains(t, address, "m from center")
	})

	t.Run("on campus with address", func(t *testing.T) {
		geocoder := NewGeofenceGeocoder(testFence(), "North Campus", fixedGeocoder{address: "12 College Rd"})
		address, err := geocoder.ReverseGeocode(ctx, onCampus[0], onCampus[1])
		require.NoError(t, err)
		assert.Equal(t, "12 College Rd (on North Campus)", address)
	})

	t.Run("off campus passes through", func(t *testing.T) {
		geocoder := NewGeofenceGeocoder(testFence(), "North Campus", fixedGeocoder{address: "Bus Stand"})
		address, err := geocoder.ReverseGeocode(ctx, offCampus[0], offCampus[1])
		require.NoError(t, err)
		assert.Equal(t, "Bus Stand", address)
	})

	t.Run("off campus failure", func(t *testing.T) {
		geocoder := NewGeofenceGeocoder(testFence(), "North Campus", fixedGeocoder{err: errors.New("quota")})
		_, err := geocoder.ReverseGeocode(ctx, offCampus[0], offCampus[1])
		assert.ErrorContains(t, err, "quota")

		_, err = NewGeofenceGeocoder(testFence(), "North Campus", nil).ReverseGeocode(ctx, offCampus[0], offCampus[1])
		assert.Error(t, err)
	})
}
