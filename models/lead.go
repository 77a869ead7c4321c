package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus represents where a lead is in the sales pipeline
type LeadStatus string

const (
	LeadStatusNew                 LeadStatus = "new"
	LeadStatusContacted           LeadStatus = "contacted"
	LeadStatusInspectionScheduled LeadStatus = "inspection_scheduled"
	LeadStatusEstimateSent        LeadStatus = "estimate_sent"
	LeadStatusWon                 LeadStatus = "won"
	LeadStatusLost                LeadStatus = "lost"
	LeadStatusCompleted           LeadStatus = "completed"
)

// Valid reports whether s is a known lead status
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusInspectionScheduled,
		LeadStatusEstimateSent, LeadStatusWon, LeadStatusLost, LeadStatusCompleted:
		return true
	}
	return false
}

// Lead represents a prospective or active roofing customer
type Lead struct {
	ID                  uuid.UUID  `json:"id"`
	Name                string     `json:"name"`
	Email               *string    `json:"email,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	Address             *string    `json:"address,omitempty"`
	Status              LeadStatus `json:"status"`
	AssignedTo          *uuid.UUID `json:"assigned_to,omitempty"`
	GoogleDriveFolderID *string    `json:"google_drive_folder_id,omitempty"`
	CreatedBy           *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
