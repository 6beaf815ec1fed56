package services

import (
	"context"
	"errors"
	"safegate/models"
	"safegate/repositories"
	"safegate/utils"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	manager     *SessionManager
	remote      *flakyRemote
	dispatcher  *recordingDispatcher
	broadcaster *fakeBroadcaster
	kv          *repositories.MemoryKVStore
}

func newSessionFixture(t *testing.T, remoteDown bool) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		remote:      newFlakyRemote(remoteDown),
		dispatcher:  &recordingDispatcher{},
		broadcaster: newFakeBroadcaster("user-1"),
		kv:          repositories.NewMemoryKVStore(),
	}
	geo := &fakeGeolocator{fixes: []models.GeoFix{{Latitude: 13.01, Longitude: 80.23, AccuracyMeters: 20}}}
	f.manager = NewSessionManager(f.kv, newTestLocation(geo), f.dispatcher, f.remote, f.broadcaster, SessionConfig{
		TrackingInterval: time.Hour,
	})
	t.Cleanup(f.manager.Shutdown)
	return f
}

func (f *sessionFixture) open(t *testing.T) *AppSession {
	t.Helper()
	session, err := f.manager.Open(context.Background(), models.Reporter{UID: "user-1", Name: "Asha", Email: "asha@campus.edu"})
	require.NoError(t, err)
	return session
}

func TestSessionManager_OpenIsIdempotent(t *testing.T) {
	f := newSessionFixture(t, false)
	first := f.open(t)
	second := f.open(t)

	assert.Same(t, first, second)
	assert.Same(t, first.Store(), f.manager.Store("user-1"))
	assert.Equal(t, []string{"user-1"}, f.manager.UserIDs())

	user, err := NewCurrentUserStore(f.kv).Load(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestSessionManager_Close(t *testing.T) {
	f := newSessionFixture(t, false)
	session := f.open(t)
	session.Tracker().Start("EMG-1")

	assert.True(t, f.manager.Close(context.Background(), "user-1"))
	assert.False(t, f.manager.Close(context.Background(), "user-1"))
	assert.False(t, session.Tracker().IsRunning())

	_, ok := f.manager.Get("user-1")
	assert.False(t, ok)
	_, err := NewCurrentUserStore(f.kv).Load(context.Background(), "user-1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	_, ok = f.manager.Stores()["user-1"]
	assert.True(t, ok, "the offline store outlives the session")
}

type fakeWelcomeMailer struct {
	mu   sync.Mutex
	sent []models.Reporter
	err  error
}

func (m *fakeWelcomeMailer) SendWelcome(_ context.Context, reporter models.Reporter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, reporter)
	return nil
}

func (m *fakeWelcomeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func TestSessionManager_WelcomeEmailOnFirstSignIn(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, false)
	mailer := &fakeWelcomeMailer{}
	f.manager.WithWelcomeMailer(mailer)

	f.open(t)
	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "asha@campus.edu", mailer.sent[0].Email)

	require.True(t, f.manager.Close(ctx, "user-1"))
	f.open(t)

	_, err := f.manager.Open(ctx, models.Reporter{UID: "user-2", Name: "Kiran"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, mailer.count(), "only the first sign-in with an email is greeted")
}

func TestSessionManager_WelcomeEmailRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, false)
	mailer := &fakeWelcomeMailer{err: errors.New("smtp: 421 try again later")}
	f.manager.WithWelcomeMailer(mailer)

	f.open(t)
	require.Eventually(t, func() bool {
		_, err := f.kv.Get(ctx, welcomeKeyPrefix+"user-1")
		return errors.Is(err, repositories.ErrNotFound)
	}, time.Second, 5*time.Millisecond, "a failed send clears the marker")

	mailer.mu.Lock()
	mailer.err = nil
	mailer.mu.Unlock()

	require.True(t, f.manager.Close(ctx, "user-1"))
	f.open(t)
	require.Eventually(t, func() bool { return mailer.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSessionManager_ReleaseEvictsIdleStores(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, false)
	f.open(t)

	assert.False(t, f.manager.Release(ctx, "user-1"), "open session keeps its store")

	require.True(t, f.manager.Close(ctx, "user-1"))
	store := f.manager.Store("user-1")
	require.NoError(t, store.Append(ctx, testReport("EMG-1", time.Now()), false))
	assert.False(t, f.manager.Release(ctx, "user-1"), "pending reports keep the store")
	assert.Contains(t, f.manager.Stores(), "user-1")

	require.NoError(t, store.MarkSynced(ctx, "EMG-1"))
	assert.True(t, f.manager.Release(ctx, "user-1"))
	assert.NotContains(t, f.manager.Stores(), "user-1")
	assert.False(t, f.manager.Release(ctx, "user-1"))

	// The log itself lives in the KV store and is picked up again.
	reports, err := f.manager.Store("user-1").List(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestAppSession_WizardLifecycle(t *testing.T) {
	f := newSessionFixture(t, false)
	session := f.open(t)

	_, err := session.Wizard()
	assert.ErrorIs(t, err, utils.ErrWizardClosed)

	wizard, err := session.OpenWizard()
	require.NoError(t, err)
	require.NoError(t, wizard.SelectType(models.EmergencyTypeMedical))
	_, err = wizard.Advance(context.Background())
	require.NoError(t, err)

	steps := f.broadcaster.messages("user-1", models.WSTypeWizardStep)
	require.Len(t, steps, 1)
	event, ok := steps[0].Data.(models.WizardTransition)
	require.True(t, ok)
	assert.Equal(t, "select_type", event.FromName)
	assert.Equal(t, "capture_location", event.ToName)
	assert.Equal(t, 2, event.Step)

	current, err := session.Wizard()
	require.NoError(t, err)
	assert.Same(t, wizard, current)

	session.CloseWizard()
	_, err = session.Wizard()
	assert.ErrorIs(t, err, utils.ErrWizardClosed)
}

func TestAppSession_TriggerWomenSafety(t *testing.T) {
	f := newSessionFixture(t, false)
	session := f.open(t)

	open, err := session.OpenWizard()
	require.NoError(t, err)
	require.NoError(t, open.SelectType(models.EmergencyTypeFire))

	result, warning, err := session.TriggerWomenSafety(context.Background())
	require.NoError(t, err)
	assert.Nil(t, warning)

	report := result.Report
	assert.Equal(t, models.EmergencyTypeWomen, report.Type)
	assert.Equal(t, models.PriorityCritical, report.Priority)
	assert.Equal(t, WomenSafetySOSDescription, report.Description)
	assert.Equal(t, models.DefaultNotificationPrefs(), report.NotificationPrefs)
	assert.True(t, result.Synced)
	assert.Equal(t, report.ID, session.Tracker().ReportID())
	assert.Len(t, f.dispatcher.reports, 1)

	current, err := session.Wizard()
	require.NoError(t, err)
	assert.Same(t, open, current)
	assert.Equal(t, models.EmergencyTypeFire, current.View().Draft.Type)
}

func TestAppSession_UpdateReportStatusStopsTracking(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, false)
	session := f.open(t)

	result, _, err := session.TriggerWomenSafety(ctx)
	require.NoError(t, err)
	id := result.Report.ID
	require.True(t, session.Tracker().IsRunning())

	require.NoError(t, session.UpdateReportStatus(ctx, id, models.ReportStatusResolved, "safe now"))

	assert.False(t, session.Tracker().IsRunning())
	local, _, err := session.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusResolved, local.Status)
	remote, _ := f.remote.Get(id)
	assert.Equal(t, models.ReportStatusResolved, remote.Status)

	err = session.UpdateReportStatus(ctx, "EMG-404", models.ReportStatusResolved, "")
	serviceErr, ok := utils.GetServiceError(err)
	require.True(t, ok)
	assert.Equal(t, 404, serviceErr.StatusCode)
}

func TestAppSession_ResyncAfterRemoteFailure(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, true)
	session := f.open(t)

	result, _, err := session.TriggerWomenSafety(ctx)
	var remoteErr *utils.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	require.NotNil(t, result)
	id := result.Report.ID

	_, err = session.Resync(ctx, id)
	require.ErrorAs(t, err, &remoteErr)

	f.remote.setDown(false)
	report, err := session.Resync(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, report.ID)

	_, synced, err := session.Store().Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, synced)
	_, ok := f.remote.Get(id)
	assert.True(t, ok)

	_, err = session.Resync(ctx, "EMG-404")
	serviceErr, isService := utils.GetServiceError(err)
	require.True(t, isService)
	assert.Equal(t, 404, serviceErr.StatusCode)
}

func TestAppSession_ResyncKeepsRemoteTransitions(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t, false)
	session := f.open(t)

	result, _, err := session.TriggerWomenSafety(ctx)
	require.NoError(t, err)
	id := result.Report.ID
	require.NoError(t, f.remote.UpdateStatus(ctx, id, models.ReportStatusAssigned, "responder-9", "on the way"))

	_, err = session.Resync(ctx, id)
	require.NoError(t, err)

	remote, ok := f.remote.Get(id)
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusAssigned, remote.Status)
	assert.Equal(t, "responder-9", remote.AssignedTo)
	assert.Len(t, remote.Timeline, 2)
	assert.Equal(t, 1, f.remote.createCount(), "synced entries are not replayed")
}

func TestResyncReport_LostAcknowledgement(t *testing.T) {
	ctx := context.Background()
	store := newTestStore("user-1")
	remote := newFlakyRemote(false)

	// The create reached the server but the client never saw the reply.
	report := testReport("EMG-1", time.Now())
	require.NoError(t, store.Append(ctx, report, false))
	_, err := remote.CreateReport(ctx, report)
	require.NoError(t, err)
	require.NoError(t, remote.UpdateStatus(ctx, "EMG-1", models.ReportStatusResolved, "responder-9", ""))

	_, err = ResyncReport(ctx, store, remote, "EMG-1")
	require.NoError(t, err)

	stored, ok := remote.Get("EMG-1")
	require.True(t, ok)
	assert.Equal(t, models.ReportStatusResolved, stored.Status)
	assert.NotNil(t, stored.ResolvedAt)
	assert.Len(t, stored.Timeline, 1)

	_, synced, err := store.Get(ctx, "EMG-1")
	require.NoError(t, err)
	assert.True(t, synced)
}
