package models

// WizardState is the position in the reporting flow.
type WizardState int

const (
	WizardStateSelectType WizardState = iota + 1
	WizardStateCaptureLocation
	WizardStateDescribe
	WizardStateReview
	WizardStateSubmitted
)

func (s WizardState) String() string {
	switch s {
	case WizardStateSelectType:
		return "select_type"
	case WizardStateCaptureLocation:
		return "capture_location"
	case WizardStateDescribe:
		return "describe"
	case WizardStateReview:
		return "review"
	case WizardStateSubmitted:
		return "submitted"
	}
	return "unknown"
}

// Step is the 1..4 index shown to the user. Submitted stays on the review step.
func (s WizardState) Step() int {
	if s >= WizardStateSubmitted {
		return int(WizardStateReview)
	}
	return int(s)
}

// EmergencyDraft is the mutable report being assembled by the wizard.
type EmergencyDraft struct {
	Type              EmergencyType     `json:"type,omitempty"`
	Description       string            `json:"description"`
	Location          *GeoFix           `json:"location,omitempty"`
	NotificationPrefs NotificationPrefs `json:"notificationPrefs"`
}

func NewEmergencyDraft() EmergencyDraft {
	return EmergencyDraft{NotificationPrefs: DefaultNotificationPrefs()}
}

// WizardTransition is emitted on every state change.
type WizardTransition struct {
	From     WizardState `json:"-"`
	To       WizardState `json:"-"`
	FromName string      `json:"from"`
	ToName   string      `json:"to"`
	Step     int         `json:"step"`
	ReportID string      `json:"reportId,omitempty"`
}

// SubmissionResult is everything the caller learns from a finalized report.
type SubmissionResult struct {
	Report   *EmergencyReport `json:"report"`
	Dispatch DispatchResult   `json:"dispatch"`
	Synced   bool             `json:"synced"`
}

// WizardView is the serializable snapshot returned by the API.
type WizardView struct {
	State     string            `json:"state"`
	Step      int               `json:"step"`
	Submitted bool              `json:"submitted"`
	InFlight  bool              `json:"inFlight"`
	Draft     EmergencyDraft    `json:"draft"`
	Result    *SubmissionResult `json:"result,omitempty"`
}

type SelectTypeRequest struct {
	Type EmergencyType `json:"type" validate:"required,emergency_type"`
}

type DetailsRequest struct {
	Description   string             `json:"description" validate:"max=2000"`
	Notifications *NotificationPrefs `json:"notifications"`
}
