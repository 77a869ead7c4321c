package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"roofcrm-backend/config"

	"github.com/google/uuid"
)

var (
	// ErrObjectNotFound is returned by every backend when the addressed object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrSigningUnavailable means the backend cannot mint signed URLs with the configured credentials.
	ErrSigningUnavailable = errors.New("signed urls unavailable")
)

// Object is a stored blob
type Object struct {
	Path string
	URL  string
}

// Storage is the primary blob store for lead files
type Storage interface {
	// Upload stores a file and returns its storage path and stable URL
	Upload(ctx context.Context, fileID uuid.UUID, filename, contentType string, data io.Reader) (*Object, error)

	// Download retrieves a file by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes a file by storage path. Missing objects yield ErrObjectNotFound.
	Delete(ctx context.Context, storagePath string) error

	// Type names the backend for logs and metrics
	Type() StorageType
}

// Signer is implemented by backends that can hand out short-lived URLs for private objects.
type Signer interface {
	SignedURL(ctx context.Context, storagePath, filename string, download bool) (string, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
	StorageTypeGCS   StorageType = "gcs"
)

// NewStorage creates the blob backend selected by cfg.Type
func NewStorage(ctx context.Context, cfg config.BlobConfig, google config.GoogleConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath, cfg.PublicBaseURL)
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeGCS:
		return NewGCSStorage(ctx, cfg, google)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// generateStoragePath generates a unique storage path for a file
func generateStoragePath(fileID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	baseName := strings.TrimSuffix(filename, ext)
	baseName = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(baseName)

	// Use fileID to ensure uniqueness
	return fmt.Sprintf("%s/%s_%s%s", fileID.String()[:2], fileID.String(), baseName, ext)
}

// ContentType returns contentType if set, otherwise infers it from the filename extension
func ContentType(filename, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		return t
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".heic":
		return "image/heic"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// contentDisposition builds the header value for inline viewing or attachment download
func contentDisposition(filename string, download bool) string {
	kind := "inline"
	if download {
		kind = "attachment"
	}
	return mime.FormatMediaType(kind, map[string]string{"filename": filename})
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

const defaultSignedURLTTL = time.Hour
