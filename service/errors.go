package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("not authorized")
	ErrAlreadyResolved    = errors.New("deletion request already resolved")
	ErrConflict           = errors.New("conflict")
	ErrUploadFailed       = errors.New("upload failed on all storage backends")
	ErrDeleteIncomplete   = errors.New("file could not be removed from every storage backend")
	ErrNoFileURL          = errors.New("file has no retrievable url")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDriveDisabled      = errors.New("google drive storage is not configured")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UploadError carries the per-backend causes when every backend rejected an upload.
type UploadError struct {
	BlobErr  error
	DriveErr error
}

func (e *UploadError) Error() string {
	parts := make([]string, 0, 2)
	if e.BlobErr != nil {
		parts = append(parts, "blob storage: "+e.BlobErr.Error())
	}
	if e.DriveErr != nil {
		parts = append(parts, "google drive: "+e.DriveErr.Error())
	}
	return "upload failed: " + strings.Join(parts, "; ")
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUploadFailed
}
