package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"safegate/config"
	"safegate/controllers"
	"safegate/models"
	"safegate/repositories"
	"safegate/services"
	"safegate/utils"
	"safegate/websocket"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	campusLat = 12.9716
	campusLng = 77.5946
)

// switchableRemote is the in-memory store with a kill switch on writes.
type switchableRemote struct {
	*services.MemoryReportService

	mu   sync.Mutex
	down bool
}

func (r *switchableRemote) setDown(down bool) {
	r.mu.Lock()
	r.down = down
	r.mu.Unlock()
}

func (r *switchableRemote) CreateReport(ctx context.Context, report *models.EmergencyReport) (string, error) {
	r.mu.Lock()
	down := r.down
	r.mu.Unlock()
	if down {
		return "", errors.New("firestore unavailable")
	}
	return r.MemoryReportService.CreateReport(ctx, report)
}

type envelope struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Data     json.RawMessage  `json:"data"`
	Error    *models.APIError `json:"error"`
	Warnings []string         `json:"warnings"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	remote *switchableRemote
	token  string
}

func newTestAPI(t *testing.T, environment string, probes map[string]controllers.HealthProbe) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment:       environment,
		Version:           "test",
		RateLimitRequests: 1000,
		RateLimitWindow:   time.Minute,
	}

	kv := repositories.NewMemoryKVStore()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)

	remote := &switchableRemote{MemoryReportService: services.NewMemoryReportService()}
	geolocator := services.NewDeviceGeolocator(hub)
	location := services.NewLocationProvider(geolocator, campusLat, campusLng, 200*time.Millisecond)
	dispatcher := services.NewNotificationDispatcher(
		services.LogSender{Channel: models.ChannelSMS},
		services.LogSender{Channel: models.ChannelEmail},
		services.LogSender{Channel: models.ChannelCall},
		services.NewKVDeliveryLedger(kv),
	)

	sessions := services.NewSessionManager(kv, location, dispatcher, remote, hub, services.SessionConfig{
		TrackingInterval: time.Hour,
	})
	t.Cleanup(sessions.Shutdown)

	feed := services.NewReportFeedService(remote, hub)
	t.Cleanup(feed.Stop)

	jwtService := utils.NewJWTService("test-secret", "safegate", time.Hour)
	router := SetupRoutes(Dependencies{
		Config:     cfg,
		Hub:        hub,
		Sessions:   sessions,
		Geolocator: geolocator,
		Feed:       feed,
		Remote:     remote,
		Guard:      services.NewIdempotencyGuard(kv, time.Minute),
		Auth:       services.NewAuthService(jwtService),
		Verifier:   services.NewJWTVerifier(jwtService),
		Probes:     probes,
	})

	api := &testAPI{t: t, router: router, remote: remote}
	if environment != "production" {
		api.token = api.signIn("user-1", "Asha", "asha@campus.edu")
	}
	return api
}

func (a *testAPI) do(method, path string, body interface{}, headers map[string]string) (int, envelope) {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func (a *testAPI) signIn(uid, name, email string) string {
	a.t.Helper()

	code, env := a.do(http.MethodPost, "/api/v1/auth/token", services.DevTokenRequest{
		UID:   uid,
		Name:  name,
		Email: email,
	}, nil)
	require.Equal(a.t, http.StatusCreated, code)

	var issued services.DevTokenResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &issued))
	require.NotEmpty(a.t, issued.AccessToken)
	return issued.AccessToken
}

func decodeData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestWizardFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodPost, "/api/v1/wizard", nil, nil)
	require.Equal(t, http.StatusCreated, code)
	var view models.WizardView
	decodeData(t, env, &view)
	assert.Equal(t, 1, view.Step)

	code, env = api.do(http.MethodPost, "/api/v1/wizard/next", nil, nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.ErrCodeValidation, env.Error.Code)
	assert.Equal(t, "please select an emergency type", env.Message)

	code, _ = api.do(http.MethodPost, "/api/v1/wizard/type", gin.H{"type": "volcano"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/v1/wizard/type", gin.H{"type": "medical"}, nil)
	require.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodPost, "/api/v1/wizard/next", nil, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &view)
	assert.Equal(t, 2, view.Step)

	// No device is connected, so the fix falls back to campus.
	code, env = api.do(http.MethodPost, "/api/v1/wizard/location", nil, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, env.Warnings, 1)
	var captured struct {
		Location models.GeoFix     `json:"location"`
		Wizard   models.WizardView `json:"wizard"`
	}
	decodeData(t, env, &captured)
	assert.True(t, captured.Location.Fallback)
	assert.Equal(t, campusLat, captured.Location.Latitude)
	assert.Equal(t, campusLng, captured.Location.Longitude)

	code, _ = api.do(http.MethodPost, "/api/v1/wizard/next", nil, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodPost, "/api/v1/wizard/next", nil, nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "please describe the emergency", env.Message)

	code, _ = api.do(http.MethodPost, "/api/v1/wizard/details", gin.H{
		"description":   "Student fainted near the library",
		"notifications": gin.H{"sms": true, "email": false, "call": true},
	}, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodPost, "/api/v1/wizard/next", nil, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &view)
	assert.Equal(t, 4, view.Step)

	key := map[string]string{controllers.IdempotencyKeyHeader: "submit-1"}
	code, env = api.do(http.MethodPost, "/api/v1/wizard/next", nil, key)
	require.Equal(t, http.StatusCreated, code)
	var result models.SubmissionResult
	decodeData(t, env, &result)
	require.NotNil(t, result.Report)
	assert.True(t, result.Synced)
	assert.True(t, result.Dispatch.SMS)
	assert.False(t, result.Dispatch.Email)
	assert.Contains(t, result.Dispatch.Skipped, models.ChannelEmail)
	assert.Equal(t, models.ReportStatusActive, result.Report.Status)

	stored, ok := api.remote.Get(result.Report.ID)
	require.True(t, ok)
	assert.Equal(t, "Student fainted near the library", stored.Description)

	// A retry with the same key must not create a second report.
	code, env = api.do(http.MethodPost, "/api/v1/wizard/submit", nil, key)
	require.Equal(t, http.StatusConflict, code)
	details, ok := env.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, result.Report.ID, details["reportId"])

	code, env = api.do(http.MethodGet, "/api/v1/wizard", nil, nil)
	require.Equal(t, http.StatusOK, code)
	decodeData(t, env, &view)
	assert.True(t, view.Submitted)

	code, env = api.do(http.MethodGet, "/api/v1/history/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var dashboard models.Dashboard
	decodeData(t, env, &dashboard)
	assert.Equal(t, 1, dashboard.Total)
	assert.Equal(t, 1, dashboard.ActiveCount)

	code, env = api.do(http.MethodGet, "/api/v1/emergencies/mine", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var mine []models.EmergencyReport
	decodeData(t, env, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, result.Report.ID, mine[0].ID)

	code, env = api.do(http.MethodGet, "/api/v1/tracking", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var tracking models.TrackingStatus
	decodeData(t, env, &tracking)
	assert.True(t, tracking.Running)
	assert.Equal(t, result.Report.ID, tracking.ReportID)
}

func TestSOSRemoteFailureKeepsLocalCopy(t *testing.T) {
	api := newTestAPI(t, "development", nil)
	api.remote.setDown(true)

	code, env := api.do(http.MethodPost, "/api/v1/emergencies/sos", nil, nil)
	require.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, utils.ErrCodeRemote, env.Error.Code)

	var result models.SubmissionResult
	decodeData(t, env, &result)
	require.NotNil(t, result.Report)
	assert.False(t, result.Synced)
	assert.Equal(t, models.EmergencyTypeWomen, result.Report.Type)
	assert.Equal(t, services.WomenSafetySOSDescription, result.Report.Description)

	code, env = api.do(http.MethodGet, "/api/v1/history", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var history []models.EmergencyReport
	decodeData(t, env, &history)
	require.Len(t, history, 1)

	// Still down: resync reports the remote failure again.
	path := "/api/v1/history/" + result.Report.ID + "/resync"
	code, _ = api.do(http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusBadGateway, code)

	api.remote.setDown(false)
	code, _ = api.do(http.MethodPost, path, nil, nil)
	require.Equal(t, http.StatusOK, code)
	_, ok := api.remote.Get(result.Report.ID)
	assert.True(t, ok)

	code, _ = api.do(http.MethodPost, "/api/v1/history/missing/resync", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSOSSucceedsWithFallbackWarning(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodPost, "/api/v1/emergencies/sos", nil, nil)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, env.Warnings)

	var result models.SubmissionResult
	decodeData(t, env, &result)
	assert.True(t, result.Synced)
	assert.Equal(t, models.PriorityCritical, result.Report.Priority)
	assert.True(t, result.Report.Location.Fallback)

	code, env = api.do(http.MethodGet, "/api/v1/emergencies/active", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var active []models.EmergencyReport
	decodeData(t, env, &active)
	require.Len(t, active, 1)

	code, _ = api.do(http.MethodPut, "/api/v1/emergencies/"+result.Report.ID+"/status", gin.H{"status": "resolved"}, nil)
	require.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodGet, "/api/v1/tracking", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var tracking models.TrackingStatus
	decodeData(t, env, &tracking)
	assert.False(t, tracking.Running)

	code, _ = api.do(http.MethodPut, "/api/v1/emergencies/"+result.Report.ID+"/status", gin.H{"status": "closed"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPut, "/api/v1/emergencies/unknown/status", gin.H{"status": "assigned"}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLocationHistoryEndpoint(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodPost, "/api/v1/emergencies/sos", nil, nil)
	require.Equal(t, http.StatusCreated, code)
	var result models.SubmissionResult
	decodeData(t, env, &result)

	ctx := context.Background()
	for _, lat := range []float64{12.9701, 12.9702, 12.9703} {
		require.NoError(t, api.remote.AppendLocation(ctx, result.Report.ID, models.GeoFix{Latitude: lat, Longitude: campusLng, AccuracyMeters: 5}))
	}

	code, env = api.do(http.MethodGet, "/api/v1/emergencies/"+result.Report.ID+"/locations?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var history []models.LocationRecord
	decodeData(t, env, &history)
	require.Len(t, history, 2)
	assert.Equal(t, 12.9703, history[0].Fix.Latitude)
	assert.Equal(t, result.Report.ID, history[0].ReportID)

	code, _ = api.do(http.MethodGet, "/api/v1/emergencies/"+result.Report.ID+"/locations?limit=zero", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistoryClear(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, _ := api.do(http.MethodPost, "/api/v1/emergencies/sos", nil, nil)
	require.Equal(t, http.StatusCreated, code)

	code, _ = api.do(http.MethodDelete, "/api/v1/history", nil, nil)
	require.Equal(t, http.StatusOK, code)

	code, env := api.do(http.MethodGet, "/api/v1/history/dashboard", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var dashboard models.Dashboard
	decodeData(t, env, &dashboard)
	assert.Zero(t, dashboard.Total)
	assert.Empty(t, dashboard.Recent)
}

func TestDeviceFixEndpoint(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodPost, "/api/v1/location", gin.H{"latitude": 12.97, "longitude": 77.59, "accuracy": 8}, nil)
	require.Equal(t, http.StatusAccepted, code)
	var delivered struct {
		Delivered int `json:"delivered"`
	}
	decodeData(t, env, &delivered)
	assert.Zero(t, delivered.Delivered)

	code, _ = api.do(http.MethodPost, "/api/v1/location", gin.H{"accuracy": 8}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/v1/location", gin.H{"error": "EXPLODED"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPost, "/api/v1/location", gin.H{"latitude": 120.0, "longitude": 77.59}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPhotoUploadWithoutStorage(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, _ := api.do(http.MethodPost, "/api/v1/emergencies/some-id/photos", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestSessionEndpoints(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodGet, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var session struct {
		Reporter models.Reporter `json:"reporter"`
		Tracking bool            `json:"tracking"`
	}
	decodeData(t, env, &session)
	assert.Equal(t, "user-1", session.Reporter.UID)
	assert.False(t, session.Tracking)

	code, _ = api.do(http.MethodDelete, "/api/v1/session", nil, nil)
	require.Equal(t, http.StatusOK, code)

	// The token is still valid, so the next request opens a new session
	// without the old wizard.
	code, _ = api.do(http.MethodGet, "/api/v1/wizard", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthenticationRequired(t *testing.T) {
	api := newTestAPI(t, "development", nil)
	api.token = ""

	code, env := api.do(http.MethodPost, "/api/v1/wizard", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = api.do(http.MethodGet, "/api/v1/emergency-types", nil, nil)
	require.Equal(t, http.StatusOK, code)
	var catalog []models.EmergencyTypeInfo
	decodeData(t, env, &catalog)
	assert.Len(t, catalog, 8)
}

func TestDevTokenHiddenInProduction(t *testing.T) {
	api := newTestAPI(t, "production", nil)

	code, _ := api.do(http.MethodPost, "/api/v1/auth/token", services.DevTokenRequest{
		UID:   "user-1",
		Name:  "Asha",
		Email: "asha@campus.edu",
	}, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDevTokenValidation(t *testing.T) {
	api := newTestAPI(t, "development", nil)

	code, env := api.do(http.MethodPost, "/api/v1/auth/token", gin.H{"uid": "u", "name": "N", "email": "not-an-email"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, models.ErrCodeValidation, env.Error.Code)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		api := newTestAPI(t, "development", map[string]controllers.HealthProbe{
			"redis": func(context.Context) error { return nil },
		})

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var health models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "test", health.Version)
	})

	t.Run("degraded", func(t *testing.T) {
		api := newTestAPI(t, "development", map[string]controllers.HealthProbe{
			"redis":   func(context.Context) error { return nil },
			"mongodb": func(context.Context) error { return errors.New("connection refused") },
		})

		rec := httptest.NewRecorder()
		api.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var health models.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		assert.Equal(t, "degraded", health.Status)
		assert.Equal(t, "healthy", health.Services["redis"])
		assert.Equal(t, "unhealthy: connection refused", health.Services["mongodb"])
	})
}
