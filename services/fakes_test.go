package services

import (
	"context"
	"errors"
	"safegate/models"
	"safegate/repositories"
	"sync"
	"time"
)

const (
	testCampusLat = 12.9716
	testCampusLng = 77.5946
)

type fakeBroadcaster struct {
	mu      sync.Mutex
	online  map[string]bool
	sent    map[string][]models.WSMessage
	onSend  func(userID string, message models.WSMessage)
	refuse  bool
	general []models.WSMessage
}

func newFakeBroadcaster(online ...string) *fakeBroadcaster {
	b := &fakeBroadcaster{
		online: make(map[string]bool),
		sent:   make(map[string][]models.WSMessage),
	}
	for _, uid := range online {
		b.online[uid] = true
	}
	return b
}

func (b *fakeBroadcaster) SendToUser(userID string, message models.WSMessage) bool {
	b.mu.Lock()
	if b.refuse || !b.online[userID] {
		b.mu.Unlock()
		return false
	}
	b.sent[userID] = append(b.sent[userID], message)
	hook := b.onSend
	b.mu.Unlock()

	if hook != nil {
		hook(userID, message)
	}
	return true
}

func (b *fakeBroadcaster) Broadcast(message models.WSMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.general = append(b.general, message)
}

func (b *fakeBroadcaster) IsUserOnline(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online[userID]
}

func (b *fakeBroadcaster) messages(userID, msgType string) []models.WSMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.WSMessage
	for _, m := range b.sent[userID] {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// fakeGeolocator answers from a fixed queue; the last entry repeats.
type fakeGeolocator struct {
	mu    sync.Mutex
	fixes []models.GeoFix
	err   error
	calls int
	block bool
}

func (g *fakeGeolocator) CurrentPosition(ctx context.Context, _ string, _ models.PositionOptions) (models.GeoFix, error) {
	g.mu.Lock()
	g.calls++
	block, err := g.block, g.err
	var fix models.GeoFix
	if len(g.fixes) > 0 {
		fix = g.fixes[0]
		if len(g.fixes) > 1 {
			g.fixes = g.fixes[1:]
		}
	}
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return models.GeoFix{}, ctx.Err()
	}
	if err != nil {
		return models.GeoFix{}, err
	}
	return fix, nil
}

func (g *fakeGeolocator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []models.NotificationPayload
	err   error
	panic bool
}

func (s *fakeSender) Send(_ context.Context, payload models.NotificationPayload) error {
	if s.panic {
		panic("provider exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type recordingDispatcher struct {
	mu      sync.Mutex
	reports []*models.EmergencyReport
	order   *[]string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, report *models.EmergencyReport, _ models.NotificationPrefs) models.DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, report)
	if d.order != nil {
		*d.order = append(*d.order, "dispatch")
	}
	return models.DispatchResult{SMS: true, Email: true, Call: true}
}

type recordingTracker struct {
	mu      sync.Mutex
	started []string
	order   *[]string
}

func (t *recordingTracker) Start(reportID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = append(t.started, reportID)
	if t.order != nil {
		*t.order = append(*t.order, "track")
	}
}

var errRemoteDown = errors.New("remote store unreachable")

// flakyRemote fails CreateReport while down is set.
type flakyRemote struct {
	*MemoryReportService

	mu      sync.Mutex
	down    bool
	creates int
	order   *[]string
	gate    chan struct{}
}

func newFlakyRemote(down bool) *flakyRemote {
	return &flakyRemote{MemoryReportService: NewMemoryReportService(), down: down}
}

func (r *flakyRemote) CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.creates++
	down := r.down
	if r.order != nil {
		*r.order = append(*r.order, "remote")
	}
	r.mu.Unlock()
	if down {
		return "", errRemoteDown
	}
	return r.MemoryReportService.CreateReport(ctx, report)
}

func (r *flakyRemote) setDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *flakyRemote) createCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates
}

func newTestLocation(geo Geolocator) *LocationProvider {
	return NewLocationProvider(geo, testCampusLat, testCampusLng, 200*time.Millisecond)
}

func newTestStore(uid string) *OfflineStore {
	return NewOfflineStore(repositories.NewMemoryKVStore(), uid)
}

func testReport(id string, createdAt time.Time) *models.EmergencyReport {
	return &models.EmergencyReport{
		ID:        id,
		Type:      models.EmergencyTypeMedical,
		TypeName:  models.EmergencyTypeMedical.DisplayName(),
		Priority:  models.PriorityHigh,
		Location:  models.GeoFix{Latitude: testCampusLat, Longitude: testCampusLng, AccuracyMeters: 10, CapturedAt: createdAt},
		Reporter:  models.Reporter{UID: "user-1", Name: "Asha", Email: "asha@campus.edu"},
		Status:    models.ReportStatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}
