package repository

import (
	"context"
	"errors"

	"roofcrm-backend/models"

	"github.com/google/uuid"
)

const deletionRequestColumns = `id, lead_id, lead_name, lead_email, lead_address, lead_status, requested_by,
	requester_name, reason, status, rejection_reason, resolved_by, resolved_at, created_at`

// TransitionParams describes a PENDING -> APPROVED/REJECTED change
type TransitionParams struct {
	ID              uuid.UUID
	To              models.DeletionRequestStatus
	ResolvedBy      uuid.UUID
	RejectionReason *string
}

// DeletionRequestRepository handles database operations for lead deletion requests
type DeletionRequestRepository struct {
	db DBTX
}

// NewDeletionRequestRepository creates a new deletion request repository
func NewDeletionRequestRepository(db DBTX) *DeletionRequestRepository {
	return &DeletionRequestRepository{db: db}
}

// Create inserts a PENDING request. A second pending request for the same lead returns ErrConflict.
func (r *DeletionRequestRepository) Create(ctx context.Context, req *models.DeletionRequest) error {
	query := `
		INSERT INTO deletion_requests (
			lead_id, lead_name, lead_email, lead_address, lead_status, requested_by, requester_name, reason, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'PENDING')
		RETURNING id, status, created_at`

	err := r.db.QueryRow(ctx, query,
		req.LeadID,
		req.LeadName,
		req.LeadEmail,
		req.LeadAddress,
		req.LeadStatus,
		req.RequestedBy,
		req.RequesterName,
		req.Reason,
	).Scan(&req.ID, &req.Status, &req.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a deletion request by ID
func (r *DeletionRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	query := `SELECT ` + deletionRequestColumns + ` FROM deletion_requests WHERE id = $1`

	req := &models.DeletionRequest{}
	if err := r.db.QueryRow(ctx, query, id).Scan(deletionRequestScanTargets(req)...); err != nil {
		return nil, mapError(err)
	}
	return req, nil
}

// ListByStatus returns requests in the given status, newest first
func (r *DeletionRequestRepository) ListByStatus(ctx context.Context, status models.DeletionRequestStatus) ([]*models.DeletionRequest, error) {
	query := `SELECT ` + deletionRequestColumns + `
		FROM deletion_requests
		WHERE status = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*models.DeletionRequest
	for rows.Next() {
		req := &models.DeletionRequest{}
		if err := rows.Scan(deletionRequestScanTargets(req)...); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// Transition resolves a PENDING request in a single conditional UPDATE. When no row
// matches it returns ErrNotPending if the request exists and ErrNotFound otherwise.
func (r *DeletionRequestRepository) Transition(ctx context.Context, p TransitionParams) (*models.DeletionRequest, error) {
	query := `
		UPDATE deletion_requests
		SET status = $2, resolved_by = $3, rejection_reason = $4, resolved_at = NOW()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING ` + deletionRequestColumns

	req := &models.DeletionRequest{}
	err := r.db.QueryRow(ctx, query, p.ID, p.To, p.ResolvedBy, p.RejectionReason).
		Scan(deletionRequestScanTargets(req)...)
	if err == nil {
		return req, nil
	}

	err = mapError(err)
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deletion_requests WHERE id = $1)`, p.ID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrNotPending
	}
	return nil, ErrNotFound
}

func deletionRequestScanTargets(req *models.DeletionRequest) []any {
	return []any{
		&req.ID,
		&req.LeadID,
		&req.LeadName,
		&req.LeadEmail,
		&req.LeadAddress,
		&req.LeadStatus,
		&req.RequestedBy,
		&req.RequesterName,
		&req.Reason,
		&req.Status,
		&req.RejectionReason,
		&req.ResolvedBy,
		&req.ResolvedAt,
		&req.CreatedAt,
	}
}
