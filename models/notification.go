// models/notification.go
package models

type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
	ChannelCall  NotificationChannel = "call"
)

type PayloadReporter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NotificationPayload is the canonical summary handed to every channel.
type NotificationPayload struct {
	ReportID    string          `json:"reportId"`
	Type        string          `json:"type"`
	TypeName    string          `json:"typeName"`
	Priority    Priority        `json:"priority"`
	MapLink     string          `json:"mapLink"`
	Timestamp   string          `json:"timestamp"`
	Description string          `json:"description"`
	Reporter    PayloadReporter `json:"reporter"`
	Address     string          `json:"address,omitempty"`
}

// DispatchResult records per-channel delivery of one report.
type DispatchResult struct {
	SMS            bool                  `json:"sms"`
	Email          bool                  `json:"email"`
	Call           bool                  `json:"call"`
	PartialFailure bool                  `json:"partialFailure"`
	Skipped        []NotificationChannel `json:"skipped,omitempty"`
	Errors         map[string]string     `json:"errors,omitempty"`
}

func (r *DispatchResult) set(channel NotificationChannel, ok bool) {
	switch channel {
	case ChannelSMS:
		r.SMS = ok
	case ChannelEmail:
		r.Email = ok
	case ChannelCall:
		r.Call = ok
	}
}

// MarkDelivered records a successful send on the channel.
func (r *DispatchResult) MarkDelivered(channel NotificationChannel) {
	r.set(channel, true)
}

// MarkFailed records a failed send and flips the partial failure flag.
func (r *DispatchResult) MarkFailed(channel NotificationChannel, reason string) {
	r.set(channel, false)
	r.PartialFailure = true
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	r.Errors[string(channel)] = reason
}

// PushNotification is an FCM message for responders.
type PushNotification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}
