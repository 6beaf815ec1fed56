package services

import (
	"context"
	"safegate/interfaces"
	"safegate/models"
	"safegate/utils"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Dispatcher fans a report out to the notification channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, report *models.EmergencyReport, prefs models.NotificationPrefs) models.DispatchResult
}

// Tracker starts live location sharing for a report.
type Tracker interface {
	Start(reportID string)
}

// ReportLog is the local history the wizard appends to.
type ReportLog interface {
	Append(ctx context.Context, report *models.EmergencyReport, synced bool) error
	MarkSynced(ctx context.Context, id string) error
}

type WizardDeps struct {
	Location   *LocationProvider
	Dispatcher Dispatcher
	Tracker    Tracker
	Store      ReportLog
	Remote     interfaces.RemoteReportService
	Now        func() time.Time
}

// EmergencyWizard drives the four step report flow:
// SelectType -> CaptureLocation -> Describe -> Review -> Submitted.
// Transitions are linear and serialized; at most one submission is in
// flight at a time.
type EmergencyWizard struct {
	reporter models.Reporter
	deps     WizardDeps

	mu        sync.Mutex
	state     models.WizardState
	draft     models.EmergencyDraft
	inFlight  bool
	result    *models.SubmissionResult
	listeners []func(models.WizardTransition)
}

func NewEmergencyWizard(reporter models.Reporter, deps WizardDeps) *EmergencyWizard {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &EmergencyWizard{
		reporter: reporter,
		deps:     deps,
		state:    models.WizardStateSelectType,
		draft:    models.NewEmergencyDraft(),
	}
}

// OnTransition registers a listener for state changes. Listeners run while
// the wizard is locked and must not call back into it.
func (w *EmergencyWizard) OnTransition(fn func(models.WizardTransition)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

func (w *EmergencyWizard) State() models.WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *EmergencyWizard) View() models.WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()

	draft := w.draft
	if w.draft.Location != nil {
		loc := *w.draft.Location
		draft.Location = &loc
	}
	return models.WizardView{
		State:     w.state.String(),
		Step:      w.state.Step(),
		Submitted: w.state == models.WizardStateSubmitted,
		InFlight:  w.inFlight,
		Draft:     draft,
		Result:    w.result,
	}
}

func (w *EmergencyWizard) moveTo(to models.WizardState, reportID string) {
	from := w.state
	w.state = to
	event := models.WizardTransition{
		From:     from,
		To:       to,
		FromName: from.String(),
		ToName:   to.String(),
		Step:     to.Step(),
		ReportID: reportID,
	}
	for _, fn := range w.listeners {
		fn(event)
	}
}

func (w *EmergencyWizard) guardLocked() error {
	if w.inFlight {
		return utils.ErrSubmissionInFlight
	}
	if w.state == models.WizardStateSubmitted {
		return utils.NewValidationError(w.state.Step(), "report has already been submitted")
	}
	return nil
}

func (w *EmergencyWizard) SelectType(emergencyType models.EmergencyType) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return err
	}
	if w.state != models.WizardStateSelectType {
		return utils.NewValidationError(w.state.Step(), "emergency type can only be changed on the first step")
	}
	if !emergencyType.IsValid() {
		return utils.NewValidationError(w.state.Step(), "unknown emergency type")
	}
	w.draft.Type = emergencyType
	return nil
}

// CaptureLocation stores a fresh fix on the draft. A non-nil warning means
// the campus fallback was used; the flow continues either way.
func (w *EmergencyWizard) CaptureLocation(ctx context.Context) (models.GeoFix, *utils.LocationError, error) {
	w.mu.Lock()
	err := w.guardLocked()
	w.mu.Unlock()
	if err != nil {
		return models.GeoFix{}, nil, err
	}

	fix, warning := w.deps.Location.GetCurrentFix(ctx, w.reporter.UID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.guardLocked(); err != nil {
		return models.GeoFix{}, nil, err
	}
	w.draft.Location = &fix
	return fix, warning, nil
}

// SetDetails applies the describe step form. A nil prefs keeps the current
// channel selection.
func (w *EmergencyWizard) SetDetails(description string, prefs *models.NotificationPrefs) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return err
	}
	if w.state != models.WizardStateDescribe {
		return utils.NewValidationError(w.state.Step(), "details can only be edited on the describe step")
	}

	description = strings.TrimSpace(description)
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return utils.NewValidationError(w.state.Step(), "description must be at most 500 characters")
	}

	w.draft.Description = description
	if prefs != nil {
		w.draft.NotificationPrefs = *prefs
	}
	return nil
}

// Advance checks the current step and moves forward. From Review it
// submits the report.
func (w *EmergencyWizard) Advance(ctx context.Context) (*models.SubmissionResult, error) {
	w.mu.Lock()

	if err := w.guardLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}

	step := w.state.Step()
	switch w.state {
	case models.WizardStateSelectType:
		if w.draft.Type == "" {
			w.mu.Unlock()
			return nil, utils.NewValidationError(step, "please select an emergency type")
		}
	case models.WizardStateCaptureLocation:
		if w.draft.Location == nil {
			w.mu.Unlock()
			return nil, utils.NewValidationError(step, "please capture your location")
		}
	case models.WizardStateDescribe:
		if w.draft.Description == "" && !w.draft.Type.WaivesDescription() {
			w.mu.Unlock()
			return nil, utils.NewValidationError(step, "please describe the emergency")
		}
	case models.WizardStateReview:
		w.mu.Unlock()
		return w.Submit(ctx)
	}

	w.moveTo(w.state+1, "")
	w.mu.Unlock()
	return nil, nil
}

// Retreat moves back one step. On the first step it does nothing.
func (w *EmergencyWizard) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return utils.ErrSubmissionInFlight
	}
	switch w.state {
	case models.WizardStateCaptureLocation, models.WizardStateDescribe, models.WizardStateReview:
		w.moveTo(w.state-1, "")
	}
	return nil
}

// Reset discards the draft and starts over with default preferences.
func (w *EmergencyWizard) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.inFlight {
		return utils.ErrSubmissionInFlight
	}
	w.draft = models.NewEmergencyDraft()
	w.result = nil
	if w.state != models.WizardStateSelectType {
		w.moveTo(models.WizardStateSelectType, "")
	}
	return nil
}

func (w *EmergencyWizard) freezeLocked() *models.EmergencyReport {
	now := w.deps.Now()
	location := *w.draft.Location

	return &models.EmergencyReport{
		ID:                utils.GenerateEmergencyID(now),
		Type:              w.draft.Type,
		TypeName:          w.draft.Type.DisplayName(),
		Priority:          w.draft.Type.Priority(),
		Description:       w.draft.Description,
		Location:          location,
		NotificationPrefs: w.draft.NotificationPrefs,
		Reporter:          w.reporter,
		Status:            models.ReportStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
		Timeline: []models.TimelineEntry{{
			Action:    models.TimelineActionReported,
			Actor:     w.reporter.Name,
			Timestamp: now,
		}},
	}
}

// Submit freezes the draft and runs the side effects in order: notify,
// start live tracking, append to the local log, write to the remote store.
// Local effects are not rolled back when the remote write fails; the
// returned error is then a *utils.RemoteError and the result is still set.
func (w *EmergencyWizard) Submit(ctx context.Context) (*models.SubmissionResult, error) {
	w.mu.Lock()
	if err := w.guardLocked(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.state != models.WizardStateReview {
		step := w.state.Step()
		w.mu.Unlock()
		return nil, utils.NewValidationError(step, "report is not ready to submit")
	}
	if w.draft.Type == "" || w.draft.Location == nil {
		w.mu.Unlock()
		return nil, utils.NewValidationError(w.state.Step(), "report is incomplete")
	}
	w.inFlight = true
	report := w.freezeLocked()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
	}()

	// Closing the wizard or dropping the request must not cancel delivery.
	ctx = context.WithoutCancel(ctx)

	log := logrus.WithFields(logrus.Fields{
		"reportId": report.ID,
		"type":     report.Type,
		"priority": report.Priority,
		"userId":   w.reporter.UID,
	})
	log.Info("Submitting emergency report")

	dispatch := w.deps.Dispatcher.Dispatch(ctx, report.Clone(), report.NotificationPrefs)

	if w.deps.Tracker != nil {
		w.deps.Tracker.Start(report.ID)
	}

	if err := w.deps.Store.Append(ctx, report.Clone(), false); err != nil {
		log.WithError(err).Error("Failed to append report to offline log")
	}

	synced := false
	_, remoteErr := w.deps.Remote.CreateReport(ctx, report.Clone())
	if remoteErr != nil {
		log.WithError(remoteErr).Error("Remote report creation failed, queued for resync")
	} else {
		synced = true
		if err := w.deps.Store.MarkSynced(ctx, report.ID); err != nil {
			log.WithError(err).Warn("Failed to mark report synced")
		}
	}

	result := &models.SubmissionResult{
		Report:   report,
		Dispatch: dispatch,
		Synced:   synced,
	}

	w.mu.Lock()
	w.result = result
	w.moveTo(models.WizardStateSubmitted, report.ID)
	w.mu.Unlock()

	// Callers get their own copy; the wizard keeps the submitted snapshot.
	out := *result
	out.Report = report.Clone()
	return &out, utils.NewRemoteError("createReport", remoteErr)
}
