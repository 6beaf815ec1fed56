package services

import (
	"context"
	"errors"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultLocationTimeout = 10 * time.Second
	FallbackAccuracyMeters = 100
)

var errNoDevice = errors.New("no connected device")

// Geolocator produces a single position for a user's device.
type Geolocator interface {
	CurrentPosition(ctx context.Context, userID string, opts models.PositionOptions) (models.GeoFix, error)
}

// LocationProvider asks the device for a fresh fix and falls back to the
// campus reference point when it cannot get one.
type LocationProvider struct {
	geolocator Geolocator
	campusLat  float64
	campusLng  float64
	timeout    time.Duration
	now        func() time.Time
}

func NewLocationProvider(geolocator Geolocator, campusLat, campusLng float64, timeout time.Duration) *LocationProvider {
	if timeout <= 0 {
		timeout = DefaultLocationTimeout
	}
	return &LocationProvider{
		geolocator: geolocator,
		campusLat:  campusLat,
		campusLng:  campusLng,
		timeout:    timeout,
		now:        time.Now,
	}
}

func (lp *LocationProvider) options() models.PositionOptions {
	return models.PositionOptions{
		EnableHighAccuracy: true,
		Timeout:            lp.timeout,
		MaximumAge:         0,
	}
}

// GetCurrentFix always returns a usable fix. When the device fails the
// returned warning classifies why and the fix is the campus fallback.
func (lp *LocationProvider) GetCurrentFix(ctx context.Context, userID string) (models.GeoFix, *utils.LocationError) {
	fix, err := lp.Sample(ctx, userID)
	if err == nil {
		return fix, nil
	}

	warning := classifyLocationError(err)
	logrus.WithFields(logrus.Fields{
		"userId": userID,
		"kind":   warning.Kind,
	}).Warn("Geolocation failed, using campus fallback")

	return lp.FallbackFix(), warning
}

// Sample requests one fix without any fallback. The wait is bounded by the
// provider timeout.
func (lp *LocationProvider) Sample(ctx context.Context, userID string) (models.GeoFix, error) {
	ctx, cancel := context.WithTimeout(ctx, lp.timeout)
	defer cancel()

	fix, err := lp.geolocator.CurrentPosition(ctx, userID, lp.options())
	if err != nil {
		return models.GeoFix{}, err
	}

	if !utils.IsValidCoordinate(fix.Latitude, fix.Longitude) {
		return models.GeoFix{}, utils.NewLocationError(utils.LocationPositionUnavailable, errors.New("coordinate out of range"))
	}
	fix.AccuracyMeters = utils.NormalizeAccuracy(fix.AccuracyMeters)
	if fix.CapturedAt.IsZero() {
		fix.CapturedAt = lp.now()
	}
	fix.Fallback = false
	return fix, nil
}

func (lp *LocationProvider) FallbackFix() models.GeoFix {
	return models.GeoFix{
		Latitude:       lp.campusLat,
		Longitude:      lp.campusLng,
		AccuracyMeters: FallbackAccuracyMeters,
		CapturedAt:     lp.now(),
		Fallback:       true,
	}
}

// DistanceFromCampus is reported alongside live fixes.
func (lp *LocationProvider) DistanceFromCampus(fix models.GeoFix) float64 {
	return utils.CalculateDistance(lp.campusLat, lp.campusLng, fix.Latitude, fix.Longitude)
}

func classifyLocationError(err error) *utils.LocationError {
	var locErr *utils.LocationError
	if errors.As(err, &locErr) {
		return locErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.NewLocationError(utils.LocationTimeout, err)
	}
	return utils.NewLocationError(utils.LocationPositionUnavailable, err)
}

type deviceReply struct {
	fix models.GeoFix
	err error
}

// DeviceGeolocator asks a user's connected device for its position over the
// websocket hub and waits for the reply. Only replies that arrive after the
// request was sent are accepted.
type DeviceGeolocator struct {
	broadcaster interfaces.Broadcaster

	mu      sync.Mutex
	waiters map[string]map[chan deviceReply]struct{}
	now     func() time.Time
}

func NewDeviceGeolocator(broadcaster interfaces.Broadcaster) *DeviceGeolocator {
	return &DeviceGeolocator{
		broadcaster: broadcaster,
		waiters:     make(map[string]map[chan deviceReply]struct{}),
		now:         time.Now,
	}
}

func (g *DeviceGeolocator) CurrentPosition(ctx context.Context, userID string, opts models.PositionOptions) (models.GeoFix, error) {
	if g.broadcaster == nil || !g.broadcaster.IsUserOnline(userID) {
		return models.GeoFix{}, utils.NewLocationError(utils.LocationPositionUnavailable, errNoDevice)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	reply := g.register(userID)
	defer g.unregister(userID, reply)

	sent := g.broadcaster.SendToUser(userID, utils.WSEvent(models.WSTypeLocationRequest, map[string]interface{}{
		"enableHighAccuracy": opts.EnableHighAccuracy,
		"timeout":            opts.Timeout.Milliseconds(),
		"maximumAge":         opts.MaximumAge.Milliseconds(),
	}))
	if !sent {
		return models.GeoFix{}, utils.NewLocationError(utils.LocationPositionUnavailable, errNoDevice)
	}

	select {
	case r := <-reply:
		return r.fix, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.GeoFix{}, utils.NewLocationError(utils.LocationTimeout, ctx.Err())
		}
		return models.GeoFix{}, ctx.Err()
	}
}

// Deliver hands a device fix to every pending request for the user and
// returns how many were satisfied. The fix is stamped with server time.
func (g *DeviceGeolocator) Deliver(userID string, fix models.GeoFix) int {
	fix.CapturedAt = g.now()
	return g.fanOut(userID, deviceReply{fix: fix})
}

func (g *DeviceGeolocator) DeliverError(userID string, kind utils.LocationErrorKind) int {
	return g.fanOut(userID, deviceReply{err: utils.NewLocationError(kind, nil)})
}

func (g *DeviceGeolocator) fanOut(userID string, r deviceReply) int {
	g.mu.Lock()
	pending := g.waiters[userID]
	delete(g.waiters, userID)
	g.mu.Unlock()

	for ch := range pending {
		ch <- r
	}
	return len(pending)
}

func (g *DeviceGeolocator) register(userID string) chan deviceReply {
	ch := make(chan deviceReply, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.waiters[userID] == nil {
		g.waiters[userID] = make(map[chan deviceReply]struct{})
	}
	g.waiters[userID][ch] = struct{}{}
	return ch
}

func (g *DeviceGeolocator) unregister(userID string, ch chan deviceReply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.waiters[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(g.waiters, userID)
		}
	}
}

// Pending reports whether any request for the user is waiting on the device.
func (g *DeviceGeolocator) Pending(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters[userID]) > 0
}

// HandleDeviceReply routes a device's answer to a location_request, either
// a coordinate or a geolocation error code.
func (g *DeviceGeolocator) HandleDeviceReply(userID string, reply models.DeviceFixRequest) (int, error) {
	if reply.Error != "" {
		return g.DeliverError(userID, utils.LocationErrorKind(reply.Error)), nil
	}
	if reply.Latitude == nil || reply.Longitude == nil {
		return 0, errors.New("latitude and longitude are required")
	}
	return g.Deliver(userID, models.GeoFix{
		Latitude:       *reply.Latitude,
		Longitude:      *reply.Longitude,
		AccuracyMeters: reply.Accuracy,
	}), nil
}
