package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies entries in a lead's activity log
type ActivityType string

const (
	ActivityLeadCreated       ActivityType = "lead_created"
	ActivityLeadDeleted       ActivityType = "lead_deleted"
	ActivityFileUploaded      ActivityType = "file_uploaded"
	ActivityFileDeleted       ActivityType = "file_deleted"
	ActivityNoteAdded         ActivityType = "note_added"
	ActivityDeletionRequested ActivityType = "deletion_requested"
	ActivityDeletionApproved  ActivityType = "deletion_approved"
	ActivityDeletionRejected  ActivityType = "deletion_rejected"
)

// Activity is an append-only audit entry. LeadID becomes nil once the lead is deleted.
type Activity struct {
	ID          uuid.UUID      `json:"id"`
	LeadID      *uuid.UUID     `json:"lead_id,omitempty"`
	UserID      *uuid.UUID     `json:"user_id,omitempty"`
	Type        ActivityType   `json:"type"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
