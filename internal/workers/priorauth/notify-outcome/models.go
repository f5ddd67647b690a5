// internal/workers/priorauth/notify-outcome/models.go
package notifyoutcome

type Input struct {
	RequestID       string  `json:"requestId"`
	Decision        string  `json:"decision"` // "APPROVE" or "PEND"
	ConfidenceScore float64 `json:"confidenceScore"`
	Borderline      bool    `json:"borderline"`
	Rationale       string  `json:"rationale,omitempty"`
	Gaps            []Gap   `json:"gaps,omitempty"`
}

// Gap mirrors the gap summary emitted by the assessment task.
type Gap struct {
	Description    string `json:"description"`
	RequiredAction string `json:"requiredAction,omitempty"`
	Critical       bool   `json:"critical"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"status"` // "sent", "skipped", "disabled"
	Channels       []string `json:"channels,omitempty"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
