package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"roofcrm-backend/config"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// GCSStorage implements Storage for Google Cloud Storage
type GCSStorage struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
	signerEmail   string
	signerKey     []byte
	signedURLTTL  time.Duration
}

// NewGCSStorage creates a GCS-backed storage using application default credentials.
// The service account key, when present, is only used to sign download URLs.
func NewGCSStorage(ctx context.Context, cfg config.BlobConfig, google config.GoogleConfig) (*GCSStorage, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}

	s := &GCSStorage{
		client:        client,
		bucket:        cfg.GCSBucket,
		publicBaseURL: cfg.PublicBaseURL,
		signedURLTTL:  ttl,
	}
	if google.HasServiceAccount() {
		s.signerEmail = google.ServiceAccountEmail
		s.signerKey = []byte(google.PrivateKey)
	}
	return s, nil
}

// Type implements Storage
func (s *GCSStorage) Type() StorageType {
	return StorageTypeGCS
}

// Upload streams a file into the bucket
func (s *GCSStorage) Upload(ctx context.Context, fileID uuid.UUID, filename, contentType string, data io.Reader) (*Object, error) {
	storagePath := generateStoragePath(fileID, filename)

	w := s.client.Bucket(s.bucket).Object(storagePath).NewWriter(ctx)
	w.ContentType = ContentType(filename, contentType)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return &Object{Path: storagePath, URL: s.objectURL(storagePath)}, nil
}

// Download retrieves a file from GCS
func (s *GCSStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(storagePath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}
	return r, nil
}

// Delete removes a file from GCS
func (s *GCSStorage) Delete(ctx context.Context, storagePath string) error {
	if err := s.client.Bucket(s.bucket).Object(storagePath).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, storagePath)
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// SignedURL generates a V4 signed GET URL for the object
func (s *GCSStorage) SignedURL(ctx context.Context, storagePath, filename string, download bool) (string, error) {
	if len(s.signerKey) == 0 {
		return "", ErrSigningUnavailable
	}

	return s.client.Bucket(s.bucket).SignedURL(storagePath, &gcs.SignedURLOptions{
		Scheme:         gcs.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(s.signedURLTTL),
		GoogleAccessID: s.signerEmail,
		PrivateKey:     s.signerKey,
		QueryParameters: url.Values{
			"response-content-disposition": []string{contentDisposition(filename, download)},
		},
	})
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) objectURL(storagePath string) string {
	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, storagePath)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, storagePath)
}
