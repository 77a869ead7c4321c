package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StorageLocation records which backends hold a copy of a file
type StorageLocation string

const (
	StorageBlobOnly  StorageLocation = "BLOB_ONLY"
	StorageDriveOnly StorageLocation = "DRIVE_ONLY"
	StorageDual      StorageLocation = "DUAL"
)

// URLType selects between the inline view link and the attachment download link
type URLType string

const (
	URLTypeView     URLType = "view"
	URLTypeDownload URLType = "download"
)

var (
	ErrFileNoLocation       = errors.New("file has neither a blob nor a drive location")
	ErrFileLocationMismatch = errors.New("storage location does not match stored urls")
)

// File represents a document attached to a lead
type File struct {
	ID              uuid.UUID       `json:"id"`
	LeadID          uuid.UUID       `json:"lead_id"`
	Filename        string          `json:"filename"`
	OriginalName    string          `json:"original_name"`
	MimeType        string          `json:"mime_type"`
	Size            int64           `json:"size"`
	FileType        string          `json:"file_type"`
	Category        string          `json:"category"`
	Description     *string         `json:"description,omitempty"`
	BlobPath        *string         `json:"-"`
	BlobURL         *string         `json:"blob_url,omitempty"`
	DriveFileID     *string         `json:"drive_file_id,omitempty"`
	DriveURL        *string         `json:"drive_url,omitempty"`
	StorageLocation StorageLocation `json:"storage_location"`
	UploadedBy      *uuid.UUID      `json:"uploaded_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HasBlob reports whether a blob copy is recorded
func (f *File) HasBlob() bool {
	return f.BlobURL != nil && *f.BlobURL != ""
}

// HasDrive reports whether a Drive copy is recorded
func (f *File) HasDrive() bool {
	return f.DriveURL != nil && *f.DriveURL != ""
}

// DeriveStorageLocation computes the location from the recorded URLs
func (f *File) DeriveStorageLocation() (StorageLocation, error) {
	switch {
	case f.HasBlob() && f.HasDrive():
		return StorageDual, nil
	case f.HasBlob():
		return StorageBlobOnly, nil
	case f.HasDrive():
		return StorageDriveOnly, nil
	default:
		return "", ErrFileNoLocation
	}
}

// Validate enforces that at least one URL is present and StorageLocation agrees with them
func (f *File) Validate() error {
	loc, err := f.DeriveStorageLocation()
	if err != nil {
		return err
	}
	if f.StorageLocation != loc {
		return ErrFileLocationMismatch
	}
	return nil
}
