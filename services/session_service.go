package services

import (
	"context"
	"safegate/interfaces"
	"safegate/models"
	"safegate/repositories"
	"safegate/utils"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	WomenSafetySOSDescription = "Women Safety SOS - Discreet Alert"

	welcomeKeyPrefix = "welcome:"
	welcomeTimeout   = 20 * time.Second
)

type SessionConfig struct {
	TrackingInterval time.Duration
}

// SessionManager owns one AppSession per signed-in user.
type SessionManager struct {
	kv          repositories.KVStore
	users       *CurrentUserStore
	location    *LocationProvider
	dispatcher  Dispatcher
	remote      interfaces.RemoteReportService
	broadcaster interfaces.Broadcaster
	welcome     WelcomeMailer
	cfg         SessionConfig

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*AppSession
	stores   map[string]*OfflineStore
}

func NewSessionManager(
	kv repositories.KVStore,
	location *LocationProvider,
	dispatcher Dispatcher,
	remote interfaces.RemoteReportService,
	broadcaster interfaces.Broadcaster,
	cfg SessionConfig,
) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		kv:          kv,
		users:       NewCurrentUserStore(kv),
		location:    location,
		dispatcher:  dispatcher,
		remote:      remote,
		broadcaster: broadcaster,
		cfg:         cfg,
		baseCtx:     ctx,
		cancel:      cancel,
		sessions:    make(map[string]*AppSession),
		stores:      make(map[string]*OfflineStore),
	}
}

// WithWelcomeMailer greets each user by email on their first sign-in.
func (sm *SessionManager) WithWelcomeMailer(mailer WelcomeMailer) *SessionManager {
	sm.welcome = mailer
	return sm
}

// Store returns the shared offline store for uid. Every caller gets the
// same instance so appends never race.
func (sm *SessionManager) Store(uid string) *OfflineStore {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.storeLocked(uid)
}

func (sm *SessionManager) storeLocked(uid string) *OfflineStore {
	store, ok := sm.stores[uid]
	if !ok {
		store = NewOfflineStore(sm.kv, uid)
		sm.stores[uid] = store
	}
	return store
}

// Open returns the user's session, creating it on first use.
func (sm *SessionManager) Open(ctx context.Context, reporter models.Reporter) (*AppSession, error) {
	sm.mu.Lock()
	session, ok := sm.sessions[reporter.UID]
	if !ok {
		sessionCtx, cancel := context.WithCancel(sm.baseCtx)
		session = &AppSession{
			Reporter: reporter,
			manager:  sm,
			ctx:      sessionCtx,
			cancel:   cancel,
			store:    sm.storeLocked(reporter.UID),
			tracker: NewLiveTracker(sessionCtx, reporter.UID, sm.location, sm.remote,
				sm.broadcaster, sm.cfg.TrackingInterval),
		}
		sm.sessions[reporter.UID] = session
	}
	sm.mu.Unlock()

	if !ok {
		if err := sm.users.Save(ctx, reporter); err != nil {
			logrus.WithError(err).Warnf("Failed to persist current user %s", reporter.UID)
		}
		sm.greet(ctx, reporter)
		logrus.WithField("userId", reporter.UID).Info("Session opened")
	}
	return session, nil
}

// greet sends the welcome email once per user. The marker is cleared again
// when the send fails so the next sign-in retries.
func (sm *SessionManager) greet(ctx context.Context, reporter models.Reporter) {
	if sm.welcome == nil || reporter.Email == "" {
		return
	}
	key := welcomeKeyPrefix + reporter.UID
	first, err := sm.kv.SetNX(ctx, key, []byte(time.Now().UTC().Format(time.RFC3339)), 0)
	if err != nil {
		logrus.WithError(err).Warnf("Failed to check welcome marker for %s", reporter.UID)
		return
	}
	if !first {
		return
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(sm.baseCtx, welcomeTimeout)
		defer cancel()
		if err := sm.welcome.SendWelcome(sendCtx, reporter); err != nil {
			logrus.WithError(err).Warnf("Welcome email to %s failed", reporter.UID)
			if derr := sm.kv.Delete(context.Background(), key); derr != nil {
				logrus.WithError(derr).Warnf("Failed to clear welcome marker for %s", reporter.UID)
			}
			return
		}
		logrus.WithField("userId", reporter.UID).Info("Welcome email sent")
	}()
}

func (sm *SessionManager) Get(uid string) (*AppSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[uid]
	return session, ok
}

// Close tears the session down. A submission already in flight finishes
// on its own.
func (sm *SessionManager) Close(ctx context.Context, uid string) bool {
	sm.mu.Lock()
	session, ok := sm.sessions[uid]
	delete(sm.sessions, uid)
	sm.mu.Unlock()
	if !ok {
		return false
	}

	session.teardown()
	if err := sm.users.Delete(ctx, uid); err != nil {
		logrus.WithError(err).Warnf("Failed to clear current user %s", uid)
	}
	logrus.WithField("userId", uid).Info("Session closed")
	return true
}

func (sm *SessionManager) UserIDs() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stores returns every offline store known to this process.
func (sm *SessionManager) Stores() map[string]*OfflineStore {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	stores := make(map[string]*OfflineStore, len(sm.stores))
	for uid, store := range sm.stores {
		stores[uid] = store
	}
	return stores
}

// Release drops the cached store for uid when the user has no open session
// and nothing left to sync. It reports whether the store was evicted.
func (sm *SessionManager) Release(ctx context.Context, uid string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	store, ok := sm.stores[uid]
	if !ok {
		return false
	}
	if _, open := sm.sessions[uid]; open {
		return false
	}
	pending, err := store.Pending(ctx)
	if err != nil || len(pending) > 0 {
		return false
	}
	delete(sm.stores, uid)
	logrus.WithField("userId", uid).Debug("Offline store released")
	return true
}

func (sm *SessionManager) Shutdown() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*AppSession)
	sm.mu.Unlock()

	for _, session := range sessions {
		session.teardown()
	}
	sm.cancel()
}

// AppSession is the per-user application context.
type AppSession struct {
	Reporter models.Reporter

	manager *SessionManager
	ctx     context.Context
	cancel  context.CancelFunc
	store   *OfflineStore
	tracker *LiveTracker

	mu     sync.Mutex
	wizard *EmergencyWizard
}

func (s *AppSession) Store() *OfflineStore {
	return s.store
}

func (s *AppSession) Tracker() *LiveTracker {
	return s.tracker
}

func (s *AppSession) newWizard() *EmergencyWizard {
	wizard := NewEmergencyWizard(s.Reporter, WizardDeps{
		Location:   s.manager.location,
		Dispatcher: s.manager.dispatcher,
		Tracker:    s.tracker,
		Store:      s.store,
		Remote:     s.manager.remote,
	})

	uid := s.Reporter.UID
	broadcaster := s.manager.broadcaster
	wizard.OnTransition(func(event models.WizardTransition) {
		if broadcaster != nil {
			broadcaster.SendToUser(uid, utils.WSEvent(models.WSTypeWizardStep, event))
		}
	})
	return wizard
}

// OpenWizard starts a fresh report flow, discarding any previous draft.
func (s *AppSession) OpenWizard() (*EmergencyWizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wizard != nil && s.wizard.View().InFlight {
		return nil, utils.ErrSubmissionInFlight
	}
	s.wizard = s.newWizard()
	return s.wizard, nil
}

func (s *AppSession) Wizard() (*EmergencyWizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		return nil, utils.ErrWizardClosed
	}
	return s.wizard, nil
}

func (s *AppSession) CloseWizard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wizard = nil
}

// TriggerWomenSafety runs the one-tap SOS through its own wizard so an open
// report flow is left untouched.
func (s *AppSession) TriggerWomenSafety(ctx context.Context) (*models.SubmissionResult, *utils.LocationError, error) {
	wizard := s.newWizard()

	if err := wizard.SelectType(models.EmergencyTypeWomen); err != nil {
		return nil, nil, err
	}
	if _, err := wizard.Advance(ctx); err != nil {
		return nil, nil, err
	}
	_, warning, err := wizard.CaptureLocation(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := wizard.Advance(ctx); err != nil {
		return nil, warning, err
	}
	if err := wizard.SetDetails(WomenSafetySOSDescription, nil); err != nil {
		return nil, warning, err
	}
	if _, err := wizard.Advance(ctx); err != nil {
		return nil, warning, err
	}

	result, err := wizard.Submit(ctx)
	return result, warning, err
}

// UpdateReportStatus writes a status change remotely and echoes it into
// the local history. Resolving the tracked report stops live sharing.
func (s *AppSession) UpdateReportStatus(ctx context.Context, id string, status models.ReportStatus, notes string) error {
	if err := s.manager.remote.UpdateStatus(ctx, id, status, s.Reporter.UID, notes); err != nil {
		if _, ok := utils.GetServiceError(err); ok {
			return err
		}
		return utils.NewRemoteError("updateStatus", err)
	}

	err := s.store.Update(ctx, id, func(report *models.EmergencyReport) {
		report.ApplyStatus(status, s.Reporter.UID, notes, time.Now())
	})
	if err != nil {
		logrus.WithError(err).Warnf("Failed to echo status for %s locally", id)
	}

	if status == models.ReportStatusResolved && s.tracker.ReportID() == id {
		s.tracker.Stop()
	}
	return nil
}

// Resync replays one locally logged report to the remote store.
func (s *AppSession) Resync(ctx context.Context, id string) (*models.EmergencyReport, error) {
	return ResyncReport(ctx, s.store, s.manager.remote, id)
}

func (s *AppSession) teardown() {
	s.mu.Lock()
	s.wizard = nil
	s.mu.Unlock()

	s.tracker.Stop()
	s.cancel()
}

// ResyncReport pushes a logged report to remote and marks it synced. An
// entry that is already synced is left alone; the remote copy is newer.
func ResyncReport(ctx context.Context, store *OfflineStore, remote interfaces.RemoteReportService, id string) (*models.EmergencyReport, error) {
	report, synced, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, utils.NewEmergencyNotFoundError()
	}
	if synced {
		return report, nil
	}

	if _, err := remote.CreateReport(ctx, report.Clone()); err != nil {
		return report, utils.NewRemoteError("createReport", err)
	}
	if err := store.MarkSynced(ctx, id); err != nil {
		return report, err
	}
	return report, nil
}
