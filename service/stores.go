package service

import (
	"context"
	"io"

	"roofcrm-backend/models"
	"roofcrm-backend/repository"
	"roofcrm-backend/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserStore is the user persistence the services depend on
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
}

// LeadStore is the lead persistence the services depend on
type LeadStore interface {
	Create(ctx context.Context, lead *models.Lead) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, filter repository.LeadFilter) ([]*models.Lead, error)
	SetDriveFolderID(ctx context.Context, id uuid.UUID, folderID string) (string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// FileStore is the file record persistence the services depend on
type FileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	ListByLeadID(ctx context.Context, leadID uuid.UUID) ([]*models.File, error)
	UpdateLocations(ctx context.Context, file *models.File) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeletionRequestStore is the deletion request persistence the services depend on
type DeletionRequestStore interface {
	Create(ctx context.Context, req *models.DeletionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error)
	ListByStatus(ctx context.Context, status models.DeletionRequestStatus) ([]*models.DeletionRequest, error)
	Transition(ctx context.Context, p repository.TransitionParams) (*models.DeletionRequest, error)
}

// ActivityStore is the activity log the services append to
type ActivityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	ListByLeadID(ctx context.Context, leadID uuid.UUID, limit int) ([]*models.Activity, error)
}

// DriveStore is the secondary file backend
type DriveStore interface {
	EnsureFolder(ctx context.Context, name string) (string, error)
	Upload(ctx context.Context, folderID, filename, contentType string, data io.Reader) (*storage.DriveObject, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
	Delete(ctx context.Context, fileID string) error
}

var (
	_ UserStore            = (*repository.UserRepository)(nil)
	_ LeadStore            = (*repository.LeadRepository)(nil)
	_ FileStore            = (*repository.FileRepository)(nil)
	_ DeletionRequestStore = (*repository.DeletionRequestRepository)(nil)
	_ ActivityStore        = (*repository.ActivityRepository)(nil)
	_ DriveStore           = (*storage.DriveStorage)(nil)
)

// recordActivity appends to the activity log. Failures are logged, never returned.
func recordActivity(ctx context.Context, store ActivityStore, logger *zap.Logger, activity *models.Activity) {
	if store == nil {
		return
	}
	if err := store.Create(ctx, activity); err != nil {
		logger.Warn("Failed to record activity",
			zap.String("type", string(activity.Type)),
			zap.Error(err),
		)
	}
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func strPtr(s string) *string {
	return &s
}
