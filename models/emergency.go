package models

import (
	"time"
)

type EmergencyType string

const (
	EmergencyTypeMedical  EmergencyType = "medical"
	EmergencyTypeFire     EmergencyType = "fire"
	EmergencyTypeSecurity EmergencyType = "security"
	EmergencyTypeWomen    EmergencyType = "women"
	EmergencyTypeAccident EmergencyType = "accident"
	EmergencyTypeNatural  EmergencyType = "natural"
	EmergencyTypeChemical EmergencyType = "chemical"
	EmergencyTypeOther    EmergencyType = "other"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

type ReportStatus string

const (
	ReportStatusActive   ReportStatus = "active"
	ReportStatusAssigned ReportStatus = "assigned"
	ReportStatusResolved ReportStatus = "resolved"
)

// Timeline actions
const (
	TimelineActionReported = "reported"
)

const MaxDescriptionLength = 500

// EmergencyTypeInfo is the display metadata shown next to each type.
type EmergencyTypeInfo struct {
	Type        EmergencyType `json:"type"`
	Name        string        `json:"name"`
	Color       string        `json:"color"`
	Description string        `json:"description"`
	Priority    Priority      `json:"priority"`
}

var emergencyPriorities = map[EmergencyType]Priority{
	EmergencyTypeMedical:  PriorityHigh,
	EmergencyTypeFire:     PriorityCritical,
	EmergencyTypeSecurity: PriorityHigh,
	EmergencyTypeWomen:    PriorityCritical,
	EmergencyTypeAccident: PriorityMedium,
	EmergencyTypeNatural:  PriorityHigh,
	EmergencyTypeChemical: PriorityHigh,
	EmergencyTypeOther:    PriorityLow,
}

var emergencyTypeInfo = map[EmergencyType]EmergencyTypeInfo{
	EmergencyTypeMedical:  {Name: "Medical Emergency", Color: "#e74c3c", Description: "Injury, illness or medical assistance"},
	EmergencyTypeFire:     {Name: "Fire Emergency", Color: "#e67e22", Description: "Fire, smoke or burning smell"},
	EmergencyTypeSecurity: {Name: "Security Threat", Color: "#9b59b6", Description: "Suspicious activity or intruder"},
	EmergencyTypeWomen:    {Name: "Women Safety", Color: "#e91e63", Description: "Discreet alert for harassment"},
	EmergencyTypeAccident: {Name: "Road Accident", Color: "#f39c12", Description: "Vehicle collision on campus roads"},
	EmergencyTypeNatural:  {Name: "Natural Disaster", Color: "#27ae60", Description: "Flood, storm or earthquake"},
	EmergencyTypeChemical: {Name: "Chemical Accident", Color: "#16a085", Description: "Spill or gas leak in labs"},
	EmergencyTypeOther:    {Name: "Other Emergency", Color: "#7f8c8d", Description: "Anything else that needs help"},
}

// AllEmergencyTypes lists the types in display order.
var AllEmergencyTypes = []EmergencyType{
	EmergencyTypeMedical,
	EmergencyTypeFire,
	EmergencyTypeSecurity,
	EmergencyTypeWomen,
	EmergencyTypeAccident,
	EmergencyTypeNatural,
	EmergencyTypeChemical,
	EmergencyTypeOther,
}

func (t EmergencyType) IsValid() bool {
	_, ok := emergencyPriorities[t]
	return ok
}

// Priority returns the fixed priority for the type. Unknown types are medium.
func (t EmergencyType) Priority() Priority {
	if p, ok := emergencyPriorities[t]; ok {
		return p
	}
	return PriorityMedium
}

func (t EmergencyType) DisplayName() string {
	if info, ok := emergencyTypeInfo[t]; ok {
		return info.Name
	}
	return "Emergency"
}

// WaivesDescription reports whether the describe step may be left empty.
func (t EmergencyType) WaivesDescription() bool {
	return t == EmergencyTypeWomen
}

func (t EmergencyType) Info() EmergencyTypeInfo {
	info := emergencyTypeInfo[t]
	info.Type = t
	info.Priority = t.Priority()
	return info
}

func EmergencyTypeCatalog() []EmergencyTypeInfo {
	catalog := make([]EmergencyTypeInfo, 0, len(AllEmergencyTypes))
	for _, t := range AllEmergencyTypes {
		catalog = append(catalog, t.Info())
	}
	return catalog
}

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusActive, ReportStatusAssigned, ReportStatusResolved:
		return true
	}
	return false
}

type NotificationPrefs struct {
	SMS   bool `json:"sms" bson:"sms" firestore:"sms"`
	Email bool `json:"email" bson:"email" firestore:"email"`
	Call  bool `json:"call" bson:"call" firestore:"call"`
}

func DefaultNotificationPrefs() NotificationPrefs {
	return NotificationPrefs{SMS: true, Email: true, Call: true}
}

// Reporter is the opaque identity supplied by the auth layer.
type Reporter struct {
	UID      string `json:"uid" bson:"uid" firestore:"uid"`
	Name     string `json:"name" bson:"name" firestore:"name"`
	Email    string `json:"email" bson:"email" firestore:"email"`
	CampusID string `json:"campusId,omitempty" bson:"campusId,omitempty" firestore:"campusId,omitempty"`
}

type TimelineEntry struct {
	Action    string    `json:"action" bson:"action" firestore:"action"`
	Actor     string    `json:"actor" bson:"actor" firestore:"actor"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
	Notes     string    `json:"notes,omitempty" bson:"notes,omitempty" firestore:"notes,omitempty"`
}

type EmergencyPhoto struct {
	URL        string    `json:"url" bson:"url" firestore:"url"`
	Path       string    `json:"path" bson:"path" firestore:"path"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt" firestore:"uploadedAt"`
}

type EmergencyReport struct {
	ID                string            `json:"id" bson:"_id" firestore:"id"`
	Type              EmergencyType     `json:"type" bson:"type" firestore:"type"`
	TypeName          string            `json:"typeName" bson:"typeName" firestore:"typeName"`
	Priority          Priority          `json:"priority" bson:"priority" firestore:"priority"`
	Description       string            `json:"description" bson:"description" firestore:"description"`
	Location          GeoFix            `json:"location" bson:"location" firestore:"location"`
	CurrentLocation   *GeoFix           `json:"currentLocation,omitempty" bson:"currentLocation,omitempty" firestore:"currentLocation,omitempty"`
	NotificationPrefs NotificationPrefs `json:"notificationPrefs" bson:"notificationPrefs" firestore:"notificationPrefs"`
	Reporter          Reporter          `json:"reporter" bson:"reporter" firestore:"reporter"`
	Status            ReportStatus      `json:"status" bson:"status" firestore:"status"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt" firestore:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
	Timeline          []TimelineEntry   `json:"timeline" bson:"timeline" firestore:"timeline"`
	AssignedTo        string            `json:"assignedTo,omitempty" bson:"assignedTo,omitempty" firestore:"assignedTo,omitempty"`
	ResolvedAt        *time.Time        `json:"resolvedAt,omitempty" bson:"resolvedAt,omitempty" firestore:"resolvedAt,omitempty"`
	ResolvedBy        string            `json:"resolvedBy,omitempty" bson:"resolvedBy,omitempty" firestore:"resolvedBy,omitempty"`
	Photos            []EmergencyPhoto  `json:"photos,omitempty" bson:"photos,omitempty" firestore:"photos,omitempty"`
}

// Clone returns a deep copy so that callers cannot mutate shared slices.
func (r *EmergencyReport) Clone() *EmergencyReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.CurrentLocation != nil {
		loc := *r.CurrentLocation
		c.CurrentLocation = &loc
	}
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		c.ResolvedAt = &at
	}
	c.Timeline = append([]TimelineEntry(nil), r.Timeline...)
	c.Photos = append([]EmergencyPhoto(nil), r.Photos...)
	return &c
}

// ApplyStatus mutates the report the same way the remote store does on a
// status transition.
func (r *EmergencyReport) ApplyStatus(status ReportStatus, actorID, notes string, at time.Time) {
	r.Status = status
	r.UpdatedAt = at
	switch status {
	case ReportStatusAssigned:
		r.AssignedTo = actorID
	case ReportStatusResolved:
		resolvedAt := at
		r.ResolvedAt = &resolvedAt
		r.ResolvedBy = actorID
	}
	r.Timeline = append(r.Timeline, TimelineEntry{
		Action:    string(status),
		Actor:     actorID,
		Timestamp: at,
		Notes:     notes,
	})
}

// Requests

type UpdateStatusRequest struct {
	Status ReportStatus `json:"status" validate:"required,report_status"`
	Notes  string       `json:"notes" validate:"max=500"`
}

// Dashboard is the local summary rendered from the offline store.
type Dashboard struct {
	Total       int               `json:"total"`
	ActiveCount int               `json:"activeCount"`
	Recent      []EmergencyReport `json:"recent"`
}

type Responder struct {
	ID           string          `json:"id" bson:"_id" firestore:"-"`
	Name         string          `json:"name" bson:"name" firestore:"name"`
	Status       string          `json:"status" bson:"status" firestore:"status"`
	Types        []EmergencyType `json:"types" bson:"types" firestore:"types"`
	DeviceTokens []string        `json:"deviceTokens" bson:"deviceTokens" firestore:"fcmTokens"`
}

const ResponderStatusActive = "active"
