package repository

import (
	"context"

	"roofcrm-backend/models"

	"github.com/google/uuid"
)

// ActivityRepository appends to and reads the lead activity log
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends an activity
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	metadata := activity.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	query := `
		INSERT INTO activities (lead_id, user_id, type, description, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		activity.LeadID,
		activity.UserID,
		activity.Type,
		activity.Description,
		metadata,
	).Scan(&activity.ID, &activity.CreatedAt)

	return mapError(err)
}

// ListByLeadID returns a lead's activities, newest first
func (r *ActivityRepository) ListByLeadID(ctx context.Context, leadID uuid.UUID, limit int) ([]*models.Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, lead_id, user_id, type, description, metadata, created_at
		FROM activities
		WHERE lead_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		a := &models.Activity{}
		if err := rows.Scan(&a.ID, &a.LeadID, &a.UserID, &a.Type, &a.Description, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
