package models

// OfflineEntry is one element of the locally persisted report log. The
// report fields are inlined so the stored JSON is a plain list of reports.
type OfflineEntry struct {
	EmergencyReport
	Synced bool `json:"synced"`
}
