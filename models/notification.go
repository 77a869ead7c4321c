package models

import "github.com/google/uuid"

// NotificationEvent identifies what triggered a notification
type NotificationEvent string

const (
	EventDeletionRequested NotificationEvent = "deletion_requested"
	EventDeletionApproved  NotificationEvent = "deletion_approved"
	EventDeletionRejected  NotificationEvent = "deletion_rejected"
	EventMention           NotificationEvent = "mention"
	EventFileUploaded      NotificationEvent = "file_uploaded"
)

// Recipient is a resolved notification target
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
}

// Message is a composed notification ready for a channel
type Message struct {
	Event   NotificationEvent `json:"event"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Link    string            `json:"link,omitempty"`
}

// DispatchResult is the outcome of one delivery attempt
type DispatchResult struct {
	RecipientID *uuid.UUID `json:"recipient_id,omitempty"`
	Recipient   string     `json:"recipient"`
	Channel     string     `json:"channel"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
}
