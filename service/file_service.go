package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"roofcrm-backend/metrics"
	"roofcrm-backend/models"
	"roofcrm-backend/repository"
	"roofcrm-backend/storage"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	backendBlob  = "blob"
	backendDrive = "drive"

	defaultMaxFileSize = 25 * 1024 * 1024
)

// Per-backend outcomes reported by DeleteFile
const (
	BackendDeleted        = "deleted"
	BackendAlreadyDeleted = "already_deleted"
	BackendNotStored      = "not_stored"
)

// FileService coordinates lead files across the blob store and Google Drive
type FileService struct {
	files       FileStore
	leads       LeadStore
	blob        storage.Storage
	drive       DriveStore
	cache       *expirable.LRU[uuid.UUID, *models.File]
	maxFileSize int64
	logger      *zap.Logger
}

// FileServiceOption is a functional option for FileService
type FileServiceOption func(*FileService)

// FileWithFileRepository sets the file record store
func FileWithFileRepository(repo FileStore) FileServiceOption {
	return func(s *FileService) {
		s.files = repo
	}
}

// FileWithLeadRepository sets the lead store used to resolve Drive folders
func FileWithLeadRepository(repo LeadStore) FileServiceOption {
	return func(s *FileService) {
		s.leads = repo
	}
}

// FileWithBlobStorage sets the primary backend
func FileWithBlobStorage(blob storage.Storage) FileServiceOption {
	return func(s *FileService) {
		s.blob = blob
	}
}

// FileWithDriveStorage sets the secondary backend. Without it every upload is BLOB_ONLY.
func FileWithDriveStorage(drive DriveStore) FileServiceOption {
	return func(s *FileService) {
		s.drive = drive
	}
}

// FileWithCache enables the file record cache used by GetFileURL
func FileWithCache(size int, ttl time.Duration) FileServiceOption {
	return func(s *FileService) {
		s.cache = expirable.NewLRU[uuid.UUID, *models.File](size, nil, ttl)
	}
}

// FileWithMaxFileSize caps upload size in bytes
func FileWithMaxFileSize(n int64) FileServiceOption {
	return func(s *FileService) {
		s.maxFileSize = n
	}
}

// FileWithLogger sets the logger
func FileWithLogger(logger *zap.Logger) FileServiceOption {
	return func(s *FileService) {
		s.logger = logger
	}
}

// NewFileService creates a new file service
func NewFileService(opts ...FileServiceOption) *FileService {
	s := &FileService{
		maxFileSize: defaultMaxFileSize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFileSize returns the configured upload limit
func (s *FileService) MaxFileSize() int64 {
	return s.maxFileSize
}

// UploadFileRequest represents a request to store a file for a lead
type UploadFileRequest struct {
	Data           io.Reader
	FileName       string
	MimeType       string
	LeadID         uuid.UUID
	FileType       string
	Category       string
	CustomFileName *string
	Description    *string
	UploadedBy     *uuid.UUID
}

// UploadFileResult represents the result of an upload that reached at least one backend
type UploadFileResult struct {
	Success  bool         `json:"success"`
	File     *models.File `json:"file"`
	Lead     *models.Lead `json:"-"`
	Message  string       `json:"message"`
	Warnings []string     `json:"warnings,omitempty"`
}

// UploadFile writes the file to blob storage and to the lead's Drive folder independently.
// It succeeds when either backend accepted the file; when both fail it returns an
// *UploadError and persists nothing.
func (s *FileService) UploadFile(ctx context.Context, req UploadFileRequest) (*UploadFileResult, error) {
	if s.files == nil || s.leads == nil || s.blob == nil {
		return nil, errors.New("file service not fully configured")
	}
	if req.Data == nil {
		return nil, validationError("file is required")
	}
	if req.LeadID == uuid.Nil {
		return nil, validationError("leadId is required")
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, validationError("file name is required")
	}
	if strings.TrimSpace(req.FileType) == "" {
		return nil, validationError("fileType is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, validationError("category is required")
	}

	lead, err := s.leads.GetByID(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, req.LeadID)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(req.Data, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, validationError("file size exceeds maximum of %d bytes", s.maxFileSize)
	}

	fileID := uuid.New()
	name := displayFileName(req.FileName, req.CustomFileName)
	contentType := storage.ContentType(req.FileName, req.MimeType)
	log := s.logger.With(
		zap.String("lead_id", lead.ID.String()),
		zap.String("file_id", fileID.String()),
	)

	var (
		blobObj  *storage.Object
		blobErr  error
		driveObj *storage.DriveObject
		driveErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		blobObj, blobErr = s.blob.Upload(ctx, fileID, name, contentType, bytes.NewReader(data))
		metrics.FileBackendOperations.WithLabelValues(backendBlob, "upload", metrics.Result(blobErr)).Inc()
		return nil
	})
	g.Go(func() error {
		driveObj, driveErr = s.uploadToDrive(ctx, lead, name, contentType, data)
		if !errors.Is(driveErr, ErrDriveDisabled) {
			metrics.FileBackendOperations.WithLabelValues(backendDrive, "upload", metrics.Result(driveErr)).Inc()
		}
		return nil
	})
	_ = g.Wait()

	if blobErr != nil && driveErr != nil {
		log.Error("Upload failed on both storage backends",
			zap.NamedError("blob_error", blobErr),
			zap.NamedError("drive_error", driveErr),
		)
		return nil, &UploadError{BlobErr: blobErr, DriveErr: driveErr}
	}

	file := &models.File{
		ID:           fileID,
		LeadID:       lead.ID,
		Filename:     name,
		OriginalName: req.FileName,
		MimeType:     contentType,
		Size:         int64(len(data)),
		FileType:     req.FileType,
		Category:     req.Category,
		Description:  req.Description,
		UploadedBy:   req.UploadedBy,
	}
	var warnings []string
	if blobErr == nil {
		file.BlobPath = strPtr(blobObj.Path)
		file.BlobURL = strPtr(blobObj.URL)
	} else {
		log.Warn("Blob upload failed, file stored in Google Drive only", zap.Error(blobErr))
		warnings = append(warnings, "blob storage upload failed: "+blobErr.Error())
	}
	if driveErr == nil {
		file.DriveFileID = strPtr(driveObj.ID)
		file.DriveURL = strPtr(driveObj.ViewURL)
	} else if errors.Is(driveErr, ErrDriveDisabled) {
		log.Debug("Google Drive disabled, file stored in blob storage only")
	} else {
		log.Warn("Google Drive upload failed, file stored in blob storage only", zap.Error(driveErr))
		warnings = append(warnings, "google drive upload failed: "+driveErr.Error())
	}

	loc, err := file.DeriveStorageLocation()
	if err != nil {
		// A backend reported success without a usable URL.
		s.removeObjects(context.WithoutCancel(ctx), file)
		return nil, fmt.Errorf("no usable file location after upload: %w", err)
	}
	file.StorageLocation = loc
	if err := s.files.Create(ctx, file); err != nil {
		s.removeObjects(context.WithoutCancel(ctx), file)
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}

	metrics.FileUploadsByLocation.WithLabelValues(string(file.StorageLocation)).Inc()
	s.cacheSet(file)
	log.Info("File uploaded", zap.String("storage_location", string(file.StorageLocation)))

	return &UploadFileResult{
		Success:  true,
		File:     file,
		Lead:     lead,
		Message:  uploadMessage(file.StorageLocation),
		Warnings: warnings,
	}, nil
}

// uploadToDrive resolves (or creates and records) the lead's folder and uploads into it.
func (s *FileService) uploadToDrive(ctx context.Context, lead *models.Lead, name, contentType string, data []byte) (*storage.DriveObject, error) {
	if s.drive == nil {
		return nil, ErrDriveDisabled
	}

	folderID, err := s.ensureLeadFolder(ctx, lead)
	if err != nil {
		return nil, err
	}
	return s.drive.Upload(ctx, folderID, name, contentType, bytes.NewReader(data))
}

func (s *FileService) ensureLeadFolder(ctx context.Context, lead *models.Lead) (string, error) {
	if lead.GoogleDriveFolderID != nil && *lead.GoogleDriveFolderID != "" {
		return *lead.GoogleDriveFolderID, nil
	}

	created, err := s.drive.EnsureFolder(ctx, leadFolderName(lead))
	if err != nil {
		return "", err
	}

	folderID, err := s.leads.SetDriveFolderID(ctx, lead.ID, created)
	if err != nil {
		// The folder is found again by name next time, so the upload can go ahead.
		s.logger.Warn("Failed to record Drive folder on lead",
			zap.String("lead_id", lead.ID.String()),
			zap.String("folder_id", created),
			zap.Error(err),
		)
		folderID = created
	} else if folderID != created {
		// A concurrent upload recorded its folder first; every file goes there.
		s.logger.Info("Lead already has a Drive folder, using it",
			zap.String("lead_id", lead.ID.String()),
			zap.String("folder_id", folderID),
			zap.String("unused_folder_id", created),
		)
	}
	lead.GoogleDriveFolderID = &folderID
	return folderID, nil
}

// GetFileURL returns the blob URL when present, otherwise the Drive link for urlType.
func (s *FileService) GetFileURL(ctx context.Context, fileID uuid.UUID, urlType models.URLType) (string, error) {
	if urlType == "" {
		urlType = models.URLTypeView
	}
	if urlType != models.URLTypeView && urlType != models.URLTypeDownload {
		return "", validationError("type must be view or download")
	}

	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	if file.HasBlob() {
		if signer, ok := s.blob.(storage.Signer); ok && file.BlobPath != nil {
			signed, err := signer.SignedURL(ctx, *file.BlobPath, file.Filename, urlType == models.URLTypeDownload)
			if err == nil {
				return signed, nil
			}
			if !errors.Is(err, storage.ErrSigningUnavailable) {
				s.logger.Warn("Failed to sign blob url, returning stored url",
					zap.String("file_id", file.ID.String()),
					zap.Error(err),
				)
			}
		}
		return *file.BlobURL, nil
	}

	if file.HasDrive() {
		if urlType == models.URLTypeDownload && file.DriveFileID != nil {
			return storage.DriveDownloadURL(*file.DriveFileID), nil
		}
		return *file.DriveURL, nil
	}

	return "", ErrNoFileURL
}

// DeleteFileResult reports what happened on each backend
type DeleteFileResult struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Backends map[string]string `json:"backends"`
}

// DeleteFile removes the file from every backend that holds it. Objects that are already
// gone count as deleted. The record is only removed when no backend failed, so a retry
// can finish the job; in that case ErrDeleteIncomplete is returned with the result.
func (s *FileService) DeleteFile(ctx context.Context, fileID uuid.UUID) (*DeleteFileResult, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	result := &DeleteFileResult{Backends: map[string]string{
		backendBlob:  BackendNotStored,
		backendDrive: BackendNotStored,
	}}
	var failures []string

	if file.BlobPath != nil && *file.BlobPath != "" {
		outcome, err := deleteOutcome(s.blob.Delete(ctx, *file.BlobPath))
		result.Backends[backendBlob] = outcome
		if err != nil {
			failures = append(failures, "blob storage: "+err.Error())
		}
		metrics.FileBackendOperations.WithLabelValues(backendBlob, "delete", metrics.Result(err)).Inc()
	}

	if file.DriveFileID != nil && *file.DriveFileID != "" {
		var err error
		if s.drive == nil {
			err = ErrDriveDisabled
			result.Backends[backendDrive] = "failed: " + err.Error()
		} else {
			var outcome string
			outcome, err = deleteOutcome(s.drive.Delete(ctx, *file.DriveFileID))
			result.Backends[backendDrive] = outcome
		}
		if err != nil {
			failures = append(failures, "google drive: "+err.Error())
		}
		metrics.FileBackendOperations.WithLabelValues(backendDrive, "delete", metrics.Result(err)).Inc()
	}

	if len(failures) > 0 {
		result.Message = "File was not removed from every backend; the record is kept so the delete can be retried: " +
			strings.Join(failures, "; ")
		s.logger.Warn("Partial file delete",
			zap.String("file_id", file.ID.String()),
			zap.String("lead_id", file.LeadID.String()),
			zap.Strings("failures", failures),
		)
		return result, ErrDeleteIncomplete
	}

	if err := s.files.Delete(ctx, file.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to delete file record: %w", err)
	}
	s.cacheRemove(file.ID)

	result.Success = true
	result.Message = "File deleted"
	return result, nil
}

// SyncFile copies a single-backend file into the backend it is missing from and upgrades the record to DUAL.
func (s *FileService) SyncFile(ctx context.Context, fileID uuid.UUID) (*models.File, error) {
	file, err := s.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	switch file.StorageLocation {
	case models.StorageDual:
		return file, nil

	case models.StorageBlobOnly:
		if s.drive == nil {
			return nil, ErrDriveDisabled
		}
		data, err := readAll(s.blob.Download(ctx, *file.BlobPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read blob copy: %w", err)
		}
		lead, err := s.leads.GetByID(ctx, file.LeadID)
		if err != nil {
			return nil, err
		}
		obj, err := s.uploadToDrive(ctx, lead, file.Filename, file.MimeType, data)
		metrics.FileBackendOperations.WithLabelValues(backendDrive, "sync", metrics.Result(err)).Inc()
		if err != nil {
			return nil, err
		}
		file.DriveFileID = strPtr(obj.ID)
		file.DriveURL = strPtr(obj.ViewURL)

	case models.StorageDriveOnly:
		if s.drive == nil {
			return nil, ErrDriveDisabled
		}
		data, err := readAll(s.drive.Download(ctx, *file.DriveFileID))
		if err != nil {
			return nil, fmt.Errorf("failed to read drive copy: %w", err)
		}
		obj, err := s.blob.Upload(ctx, file.ID, file.Filename, file.MimeType, bytes.NewReader(data))
		metrics.FileBackendOperations.WithLabelValues(backendBlob, "sync", metrics.Result(err)).Inc()
		if err != nil {
			return nil, err
		}
		file.BlobPath = strPtr(obj.Path)
		file.BlobURL = strPtr(obj.URL)
	}

	file.StorageLocation = models.StorageDual
	if err := s.files.UpdateLocations(ctx, file); err != nil {
		return nil, fmt.Errorf("failed to update file record: %w", err)
	}
	s.cacheSet(file)
	return file, nil
}

// ListLeadFiles returns a lead's files, newest first
func (s *FileService) ListLeadFiles(ctx context.Context, leadID uuid.UUID) ([]*models.File, error) {
	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, leadID)
		}
		return nil, err
	}
	return s.files.ListByLeadID(ctx, leadID)
}

// OrphanedFile names the stored objects of a file that could not be removed
type OrphanedFile struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	BlobPath    string `json:"blob_path,omitempty"`
	DriveFileID string `json:"drive_file_id,omitempty"`
}

// DeleteLeadFiles removes every file of a lead from its backends. It returns the objects
// that could not be removed; nothing else points at them once the lead row goes.
func (s *FileService) DeleteLeadFiles(ctx context.Context, leadID uuid.UUID) ([]OrphanedFile, error) {
	files, err := s.files.ListByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	var orphaned []OrphanedFile
	for _, f := range files {
		result, err := s.DeleteFile(ctx, f.ID)
		if err == nil {
			continue
		}
		s.logger.Warn("Failed to remove lead file during lead deletion",
			zap.String("lead_id", leadID.String()),
			zap.String("file_id", f.ID.String()),
			zap.Error(err),
		)
		orphaned = append(orphaned, orphanedObjects(f, result))
	}
	return orphaned, nil
}

// orphanedObjects keeps the locations whose delete did not succeed. With no result
// every recorded location is kept.
func orphanedObjects(f *models.File, result *DeleteFileResult) OrphanedFile {
	failed := func(backend string) bool {
		if result == nil {
			return true
		}
		outcome := result.Backends[backend]
		return outcome != BackendDeleted && outcome != BackendAlreadyDeleted && outcome != BackendNotStored
	}

	o := OrphanedFile{FileID: f.ID.String(), FileName: f.Filename}
	if f.BlobPath != nil && failed(backendBlob) {
		o.BlobPath = *f.BlobPath
	}
	if f.DriveFileID != nil && failed(backendDrive) {
		o.DriveFileID = *f.DriveFileID
	}
	return o
}

func (s *FileService) getFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	if s.cache != nil {
		if f, ok := s.cache.Get(id); ok {
			metrics.FileCacheLookups.WithLabelValues("hit").Inc()
			cp := *f
			return &cp, nil
		}
		metrics.FileCacheLookups.WithLabelValues("miss").Inc()
	}

	file, err := s.files.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
		}
		return nil, err
	}
	s.cacheSet(file)
	return file, nil
}

func (s *FileService) cacheSet(file *models.File) {
	if s.cache != nil {
		cp := *file
		s.cache.Add(file.ID, &cp)
	}
}

func (s *FileService) cacheRemove(id uuid.UUID) {
	if s.cache != nil {
		s.cache.Remove(id)
	}
}

// removeObjects undoes uploads whose record could not be saved.
func (s *FileService) removeObjects(ctx context.Context, file *models.File) {
	if file.BlobPath != nil {
		if err := s.blob.Delete(ctx, *file.BlobPath); err != nil {
			s.logger.Warn("Failed to clean up blob object", zap.String("path", *file.BlobPath), zap.Error(err))
		}
	}
	if file.DriveFileID != nil && s.drive != nil {
		if err := s.drive.Delete(ctx, *file.DriveFileID); err != nil {
			s.logger.Warn("Failed to clean up Drive file", zap.String("drive_file_id", *file.DriveFileID), zap.Error(err))
		}
	}
}

func deleteOutcome(err error) (string, error) {
	switch {
	case err == nil:
		return BackendDeleted, nil
	case errors.Is(err, storage.ErrObjectNotFound):
		return BackendAlreadyDeleted, nil
	default:
		return "failed: " + err.Error(), err
	}
}

func readAll(r io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func uploadMessage(loc models.StorageLocation) string {
	switch loc {
	case models.StorageDual:
		return "File uploaded to blob storage and Google Drive"
	case models.StorageBlobOnly:
		return "File uploaded to blob storage only"
	default:
		return "File uploaded to Google Drive only"
	}
}

// displayFileName prefers a custom name, keeping the original extension when the custom one has none.
func displayFileName(original string, custom *string) string {
	if custom == nil || strings.TrimSpace(*custom) == "" {
		return original
	}
	name := strings.TrimSpace(*custom)
	if filepath.Ext(name) == "" {
		name += filepath.Ext(original)
	}
	return name
}

func leadFolderName(lead *models.Lead) string {
	name := strings.TrimSpace(lead.Name)
	if name == "" {
		name = unknownLead
	}
	return fmt.Sprintf("%s (%s)", name, lead.ID.String()[:8])
}
