package models

import "time"

// NotificationType classifies feed entries.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
	// NotificationAction entries expect an accept/decline response.
	NotificationAction NotificationType = "action"
)

// Notification is a user-facing event emitted by lifecycle transitions.
type Notification struct {
	ID               string           `json:"id"`
	Message          string           `json:"message"`
	Type             NotificationType `json:"type"`
	Timestamp        time.Time        `json:"timestamp"`
	AbsenceRequestID *int64           `json:"absenceRequestId,omitempty"`
	Recipient        *string          `json:"recipient,omitempty"`
}

// Actionable reports whether the notification awaits a response for requestID.
func (n Notification) Actionable(requestID int64) bool {
	return n.Type == NotificationAction && n.AbsenceRequestID != nil && *n.AbsenceRequestID == requestID
}

// NotificationFilter scopes feed reads. An empty Recipient returns every entry.
type NotificationFilter struct {
	Recipient string
	Type      NotificationType
	Limit     int
}
