package repository

import (
	"context"
	"fmt"

	"roofcrm-backend/models"

	"github.com/google/uuid"
)

const fileColumns = `id, lead_id, filename, original_name, mime_type, size, file_type, category, description,
	blob_path, blob_url, drive_file_id, drive_url, storage_location, uploaded_by, created_at`

// FileRepository handles database operations for files
type FileRepository struct {
	db DBTX
}

// NewFileRepository creates a new file repository
func NewFileRepository(db DBTX) *FileRepository {
	return &FileRepository{db: db}
}

// Create creates a new file record. The record must carry at least one backend URL.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("invalid file record: %w", err)
	}

	query := `
		INSERT INTO files (
			id, lead_id, filename, original_name, mime_type, size, file_type, category, description,
			blob_path, blob_url, drive_file_id, drive_url, storage_location, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		file.ID,
		file.LeadID,
		file.Filename,
		file.OriginalName,
		file.MimeType,
		file.Size,
		file.FileType,
		file.Category,
		file.Description,
		file.BlobPath,
		file.BlobURL,
		file.DriveFileID,
		file.DriveURL,
		file.StorageLocation,
		file.UploadedBy,
	).Scan(&file.CreatedAt)

	return mapError(err)
}

// GetByID retrieves a file by ID
func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file := &models.File{}
	if err := r.db.QueryRow(ctx, query, id).Scan(fileScanTargets(file)...); err != nil {
		return nil, mapError(err)
	}
	return file, nil
}

// ListByLeadID retrieves all files for a lead, newest first
func (r *FileRepository) ListByLeadID(ctx context.Context, leadID uuid.UUID) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE lead_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*models.File
	for rows.Next() {
		file := &models.File{}
		if err := rows.Scan(fileScanTargets(file)...); err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// UpdateLocations stores new backend locations for a file, e.g. after a retry filled in a missing copy
func (r *FileRepository) UpdateLocations(ctx context.Context, file *models.File) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("invalid file record: %w", err)
	}

	query := `
		UPDATE files
		SET blob_path = $2, blob_url = $3, drive_file_id = $4, drive_url = $5, storage_location = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		file.ID,
		file.BlobPath,
		file.BlobURL,
		file.DriveFileID,
		file.DriveURL,
		file.StorageLocation,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a file record
func (r *FileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func fileScanTargets(file *models.File) []any {
	return []any{
		&file.ID,
		&file.LeadID,
		&file.Filename,
		&file.OriginalName,
		&file.MimeType,
		&file.Size,
		&file.FileType,
		&file.Category,
		&file.Description,
		&file.BlobPath,
		&file.BlobURL,
		&file.DriveFileID,
		&file.DriveURL,
		&file.StorageLocation,
		&file.UploadedBy,
		&file.CreatedAt,
	}
}
