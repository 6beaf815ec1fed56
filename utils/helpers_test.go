package utils

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateEmergencyID(t *testing.T) {
	now := time.UnixMilli(1767225600123)

	first := GenerateEmergencyID(now)
	second := GenerateEmergencyID(now)

	assert.Regexp(t, `^EMG-1767225600123-[0-9a-z]{9}$`, first)
	assert.NotEqual(t, first, second)
}

func TestMapLink(t *testing.T) {
	assert.Equal(t, "https://www.google.com/maps?q=13.0827,80.2707", MapLink(13.0827, 80.2707))
	assert.Equal(t, "https://www.google.com/maps?q=-33.5,151", MapLink(-33.5, 151))
}

func TestGenerateCampusID(t *testing.T) {
	assert.Equal(t, "21CS101", GenerateCampusID("21cs101@panimalar.edu.in"))
	assert.Equal(t, "22ECE1234", GenerateCampusID(" 22ece1234@Panimalar.edu.in "))
	assert.Equal(t, "ASHA.K", GenerateCampusID("asha.k@gmail.com"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "Smoke i...", TruncateString("Smoke in the lab", 10))
	assert.Equal(t, "நீ", TruncateString("நீர்", 2))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "3m", FormatDuration(3*time.Minute+10*time.Second))
	assert.Equal(t, "2h5m", FormatDuration(2*time.Hour+5*time.Minute))
}

func TestCalculateDistance(t *testing.T) {
	assert.Zero(t, CalculateDistance(13, 80, 13, 80))
	// One degree of latitude is about 111 km.
	assert.InDelta(t, 111195, CalculateDistance(13, 80, 14, 80), 50)
}

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(90, 180))
	assert.True(t, IsValidCoordinate(-90, -180))
	assert.False(t, IsValidCoordinate(90.1, 0))
	assert.False(t, IsValidCoordinate(0, -180.5))
	assert.False(t, IsValidCoordinate(math.NaN(), 0))
}

func TestNormalizeAccuracy(t *testing.T) {
	assert.Equal(t, 12.5, NormalizeAccuracy(12.5))
	assert.Zero(t, NormalizeAccuracy(-1))
	assert.Zero(t, NormalizeAccuracy(math.Inf(1)))
	assert.Zero(t, NormalizeAccuracy(math.NaN()))
}
