package repository

import (
	"context"
	"fmt"

	"roofcrm-backend/models"

	"github.com/google/uuid"
)

const leadColumns = `id, name, email, phone, address, status, assigned_to, google_drive_folder_id, created_by, created_at, updated_at`

// LeadFilter narrows lead listings
type LeadFilter struct {
	Status *models.LeadStatus
	Limit  int
	Offset int
}

// LeadRepository handles database operations for leads
type LeadRepository struct {
	db DBTX
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db DBTX) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a lead
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	query := `
		INSERT INTO leads (name, email, phone, address, status, assigned_to, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Address,
		lead.Status,
		lead.AssignedTo,
		lead.CreatedBy,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)

	return mapError(err)
}

// GetByID retrieves a lead by ID
func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	lead := &models.Lead{}
	err := r.db.QueryRow(ctx, query, id).Scan(leadScanTargets(lead)...)
	if err != nil {
		return nil, mapError(err)
	}
	return lead, nil
}

// List returns leads newest first
func (r *LeadRepository) List(ctx context.Context, filter LeadFilter) ([]*models.Lead, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	args := []any{}
	query := `SELECT ` + leadColumns + ` FROM leads`
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		lead := &models.Lead{}
		if err := rows.Scan(leadScanTargets(lead)...); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// SetDriveFolderID records the lead's Drive folder unless one is already set, and returns
// the folder the lead ends up with.
func (r *LeadRepository) SetDriveFolderID(ctx context.Context, id uuid.UUID, folderID string) (string, error) {
	query := `
		UPDATE leads
		SET google_drive_folder_id = COALESCE(NULLIF(google_drive_folder_id, ''), $2),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING google_drive_folder_id`

	var current string
	if err := r.db.QueryRow(ctx, query, id, folderID).Scan(&current); err != nil {
		return "", mapError(err)
	}
	return current, nil
}

// Delete removes a lead. Files cascade; deletion requests and activities keep a NULL lead_id.
func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func leadScanTargets(lead *models.Lead) []any {
	return []any{
		&lead.ID,
		&lead.Name,
		&lead.Email,
		&lead.Phone,
		&lead.Address,
		&lead.Status,
		&lead.AssignedTo,
		&lead.GoogleDriveFolderID,
		&lead.CreatedBy,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	}
}
