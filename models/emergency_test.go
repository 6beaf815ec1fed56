package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmergencyType_Priority(t *testing.T) {
	expected := map[EmergencyType]Priority{
		EmergencyTypeMedical:  PriorityHigh,
		EmergencyTypeFire:     PriorityCritical,
		EmergencyTypeSecurity: PriorityHigh,
		EmergencyTypeWomen:    PriorityCritical,
		EmergencyTypeAccident: PriorityMedium,
		EmergencyTypeNatural:  PriorityHigh,
		EmergencyTypeChemical: PriorityHigh,
		EmergencyTypeOther:    PriorityLow,
	}
	for emergencyType, priority := range expected {
		assert.Equal(t, priority, emergencyType.Priority(), emergencyType)
		assert.True(t, emergencyType.IsValid())
	}

	unknown := EmergencyType("volcano")
	assert.False(t, unknown.IsValid())
	assert.Equal(t, PriorityMedium, unknown.Priority())
	assert.Equal(t, "Emergency", unknown.DisplayName())
}

func TestEmergencyTypeCatalog(t *testing.T) {
	catalog := EmergencyTypeCatalog()
	require.Len(t, catalog, len(AllEmergencyTypes))

	for i, info := range catalog {
		assert.Equal(t, AllEmergencyTypes[i], info.Type)
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Color)
		assert.Equal(t, info.Type.Priority(), info.Priority)
	}
	assert.Equal(t, "Women Safety", catalog[3].Name)
}

func TestWaivesDescription(t *testing.T) {
	assert.True(t, EmergencyTypeWomen.WaivesDescription())
	assert.False(t, EmergencyTypeMedical.WaivesDescription())
}

func TestWizardState_Step(t *testing.T) {
	assert.Equal(t, 1, WizardStateSelectType.Step())
	assert.Equal(t, 2, WizardStateCaptureLocation.Step())
	assert.Equal(t, 3, WizardStateDescribe.Step())
	assert.Equal(t, 4, WizardStateReview.Step())
	assert.Equal(t, 4, WizardStateSubmitted.Step())
	assert.Equal(t, "submitted", WizardStateSubmitted.String())
	assert.Equal(t, "unknown", WizardState(42).String())
}

func TestEmergencyReport_ApplyStatus(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	report := &EmergencyReport{ID: "EMG-1", Status: ReportStatusActive, CreatedAt: created, UpdatedAt: created}

	assigned := created.Add(time.Minute)
	report.ApplyStatus(ReportStatusAssigned, "guard-7", "on the way", assigned)
	assert.Equal(t, ReportStatusAssigned, report.Status)
	assert.Equal(t, "guard-7", report.AssignedTo)
	assert.Equal(t, assigned, report.UpdatedAt)
	assert.Nil(t, report.ResolvedAt)

	resolved := created.Add(10 * time.Minute)
	report.ApplyStatus(ReportStatusResolved, "guard-9", "", resolved)
	assert.Equal(t, ReportStatusResolved, report.Status)
	require.NotNil(t, report.ResolvedAt)
	assert.Equal(t, resolved, *report.ResolvedAt)
	assert.Equal(t, "guard-9", report.ResolvedBy)

	require.Len(t, report.Timeline, 2)
	assert.Equal(t, "assigned", report.Timeline[0].Action)
	assert.Equal(t, "on the way", report.Timeline[0].Notes)
	assert.Equal(t, "resolved", report.Timeline[1].Action)
}

func TestEmergencyReport_Clone(t *testing.T) {
	at := time.Now()
	original := &EmergencyReport{
		ID:              "EMG-1",
		CurrentLocation: &GeoFix{Latitude: 13},
		ResolvedAt:      &at,
		Timeline:        []TimelineEntry{{Action: TimelineActionReported}},
		Photos:          []EmergencyPhoto{{URL: "a"}},
	}

	clone := original.Clone()
	clone.CurrentLocation.Latitude = 99
	clone.Timeline[0].Action = "changed"
	clone.Photos[0].URL = "b"
	*clone.ResolvedAt = at.Add(time.Hour)

	assert.Equal(t, 13.0, original.CurrentLocation.Latitude)
	assert.Equal(t, TimelineActionReported, original.Timeline[0].Action)
	assert.Equal(t, "a", original.Photos[0].URL)
	assert.Equal(t, at, *original.ResolvedAt)

	var nilReport *EmergencyReport
	assert.Nil(t, nilReport.Clone())
}

func TestDispatchResult(t *testing.T) {
	var result DispatchResult
	result.MarkDelivered(ChannelSMS)
	result.MarkFailed(ChannelCall, "no answer")

	assert.True(t, result.SMS)
	assert.False(t, result.Call)
	assert.True(t, result.PartialFailure)
	assert.Equal(t, "no answer", result.Errors["call"])
}
