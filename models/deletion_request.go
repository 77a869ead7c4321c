package models

import (
	"time"

	"github.com/google/uuid"
)

// DeletionRequestStatus is the state of a lead deletion request.
// PENDING moves to APPROVED or REJECTED exactly once.
type DeletionRequestStatus string

const (
	DeletionPending  DeletionRequestStatus = "PENDING"
	DeletionApproved DeletionRequestStatus = "APPROVED"
	DeletionRejected DeletionRequestStatus = "REJECTED"
)

// DeletionRequest asks an administrator to delete a lead. Lead fields are copied at
// creation time so the request stays readable after the lead is gone.
type DeletionRequest struct {
	ID              uuid.UUID             `json:"id"`
	LeadID          *uuid.UUID            `json:"lead_id,omitempty"`
	LeadName        string                `json:"lead_name"`
	LeadEmail       *string               `json:"lead_email,omitempty"`
	LeadAddress     *string               `json:"lead_address,omitempty"`
	LeadStatus      LeadStatus            `json:"lead_status"`
	RequestedBy     uuid.UUID             `json:"requested_by"`
	RequesterName   string                `json:"requester_name"`
	Reason          *string               `json:"reason,omitempty"`
	Status          DeletionRequestStatus `json:"status"`
	RejectionReason *string               `json:"rejection_reason,omitempty"`
	ResolvedBy      *uuid.UUID            `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time            `json:"resolved_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// IsResolved reports whether the request has left PENDING
func (r *DeletionRequest) IsResolved() bool {
	return r.Status != DeletionPending
}
