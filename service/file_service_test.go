package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"roofcrm-backend/models"
	"roofcrm-backend/repository/memstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fileFixture struct {
	store *memstore.Store
	blob  *fakeBlob
	drive *fakeDrive
	logs  *observer.ObservedLogs
	svc   *FileService
	lead  *models.Lead
}

func newFileFixture(t *testing.T, opts ...FileServiceOption) *fileFixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fileFixture{
		store: memstore.New(),
		blob:  newFakeBlob(),
		drive: newFakeDrive(),
		logs:  logs,
	}
	f.lead = &models.Lead{Name: "Jane Roofer", Status: models.LeadStatusNew}
	require.NoError(t, f.store.Leads.Create(context.Background(), f.lead))

	base := []FileServiceOption{
		FileWithFileRepository(f.store.Files),
		FileWithLeadRepository(f.store.Leads),
		FileWithBlobStorage(f.blob),
		FileWithDriveStorage(f.drive),
		FileWithLogger(zap.New(core)),
	}
	f.svc = NewFileService(append(base, opts...)...)
	return f
}

func (f *fileFixture) upload(t *testing.T, content string) (*UploadFileResult, error) {
	t.Helper()
	return f.svc.UploadFile(context.Background(), UploadFileRequest{
		Data:     strings.NewReader(content),
		FileName: "notes.txt",
		MimeType: "text/plain",
		LeadID:   f.lead.ID,
		FileType: "document",
		Category: "inspection",
	})
}

func TestUploadFileBothBackendsHealthy(t *testing.T) {
	f := newFileFixture(t)

	result, err := f.upload(t, "0123456789")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Empty(t, result.Warnings)
	file := result.File
	assert.Equal(t, models.StorageDual, file.StorageLocation)
	require.NotNil(t, file.BlobURL)
	require.NotNil(t, file.DriveURL)
	assert.Equal(t, int64(10), file.Size)

	stored, err := f.store.Files.GetByID(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StorageDual, stored.StorageLocation)
}

func TestUploadFileBlobFailsFallsBackToDrive(t *testing.T) {
	f := newFileFixture(t)
	f.blob.uploadErr = errors.New("blob service unavailable")

	result, err := f.upload(t, "0123456789")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.StorageDriveOnly, result.File.StorageLocation)
	assert.Nil(t, result.File.BlobURL)
	assert.Nil(t, result.File.BlobPath)
	require.NotNil(t, result.File.DriveURL)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "blob service unavailable")

	warns := f.logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("Blob upload failed")
	assert.Equal(t, 1, warns.Len())
}

func TestUploadFileDriveFailsKeepsBlob(t *testing.T) {
	f := newFileFixture(t)
	f.drive.uploadErr = errors.New("quota exceeded")

	result, err := f.upload(t, "hello")
	require.NoError(t, err)

	assert.Equal(t, models.StorageBlobOnly, result.File.StorageLocation)
	assert.Nil(t, result.File.DriveURL)
	require.NotNil(t, result.File.BlobURL)
}

func TestUploadFileBothBackendsFail(t *testing.T) {
	f := newFileFixture(t)
	f.blob.uploadErr = errors.New("blob down")
	f.drive.uploadErr = errors.New("drive down")

	result, err := f.upload(t, "hello")
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUploadFailed)

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Contains(t, err.Error(), "blob down")
	assert.Contains(t, err.Error(), "drive down")
	assert.Equal(t, 0, f.store.Files.Count())
}

func TestUploadFileWithoutDriveIsBlobOnly(t *testing.T) {
	f := newFileFixture(t)
	f.svc.drive = nil

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.StorageBlobOnly, result.File.StorageLocation)
	assert.Empty(t, result.Warnings)
}

func TestUploadFileRejectsSuccessWithoutURL(t *testing.T) {
	f := newFileFixture(t)
	f.blob.emptyURL = true
	f.drive.uploadErr = errors.New("drive quota exceeded")

	result, err := f.upload(t, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFileNoLocation)
	assert.Nil(t, result)

	assert.Equal(t, 0, f.store.Files.Count())
	assert.Equal(t, 1, f.blob.uploads)
	assert.Empty(t, f.blob.objects)
}

func TestUploadFileCreatesAndReusesLeadFolder(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	_, err := f.upload(t, "first")
	require.NoError(t, err)

	lead, err := f.store.Leads.GetByID(ctx, f.lead.ID)
	require.NoError(t, err)
	require.NotNil(t, lead.GoogleDriveFolderID)
	folderID := *lead.GoogleDriveFolderID

	_, err = f.upload(t, "second")
	require.NoError(t, err)

	assert.Equal(t, 1, f.drive.folderCalls)
	assert.Equal(t, []string{folderID, folderID}, f.drive.uploadFolders)
	assert.Contains(t, f.drive.folders, "Jane Roofer ("+f.lead.ID.String()[:8]+")")
}

func TestUploadFileConcurrentFirstUploadsShareOneFolder(t *testing.T) {
	f := newFileFixture(t)
	f.drive.alwaysCreate = true

	const uploads = 6
	var wg sync.WaitGroup
	errs := make([]error, uploads)
	for i := range uploads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.upload(t, "photo")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	lead, err := f.store.Leads.GetByID(context.Background(), f.lead.ID)
	require.NoError(t, err)
	require.NotNil(t, lead.GoogleDriveFolderID)

	require.Len(t, f.drive.uploadFolders, uploads)
	for _, folder := range f.drive.uploadFolders {
		assert.Equal(t, *lead.GoogleDriveFolderID, folder)
	}
}

func TestUploadFileFolderErrorCountsAsDriveFailure(t *testing.T) {
	f := newFileFixture(t)
	f.drive.folderErr = errors.New("permission denied")

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	assert.Equal(t, models.StorageBlobOnly, result.File.StorageLocation)

	lead, err := f.store.Leads.GetByID(context.Background(), f.lead.ID)
	require.NoError(t, err)
	assert.Nil(t, lead.GoogleDriveFolderID)
}

func TestUploadFileValidation(t *testing.T) {
	f := newFileFixture(t, FileWithMaxFileSize(4))
	ctx := context.Background()

	tests := []struct {
		name    string
		req     UploadFileRequest
		wantErr error
	}{
		{
			name:    "missing file",
			req:     UploadFileRequest{FileName: "a.txt", LeadID: f.lead.ID, FileType: "doc", Category: "misc"},
			wantErr: ErrValidation,
		},
		{
			name:    "missing lead",
			req:     UploadFileRequest{Data: strings.NewReader("a"), FileName: "a.txt", FileType: "doc", Category: "misc"},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown lead",
			req:     UploadFileRequest{Data: strings.NewReader("a"), FileName: "a.txt", LeadID: uuid.New(), FileType: "doc", Category: "misc"},
			wantErr: ErrNotFound,
		},
		{
			name:    "missing category",
			req:     UploadFileRequest{Data: strings.NewReader("a"), FileName: "a.txt", LeadID: f.lead.ID, FileType: "doc"},
			wantErr: ErrValidation,
		},
		{
			name:    "too large",
			req:     UploadFileRequest{Data: strings.NewReader("abcdef"), FileName: "a.txt", LeadID: f.lead.ID, FileType: "doc", Category: "misc"},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UploadFile(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 0, f.blob.uploads)
}

func TestUploadFileCustomName(t *testing.T) {
	f := newFileFixture(t)
	custom := "roof-photo"

	result, err := f.svc.UploadFile(context.Background(), UploadFileRequest{
		Data:           strings.NewReader("img"),
		FileName:       "IMG_0001.jpg",
		LeadID:         f.lead.ID,
		FileType:       "photo",
		Category:       "inspection",
		CustomFileName: &custom,
	})
	require.NoError(t, err)
	assert.Equal(t, "roof-photo.jpg", result.File.Filename)
	assert.Equal(t, "IMG_0001.jpg", result.File.OriginalName)
	assert.Equal(t, "image/jpeg", result.File.MimeType)
}

func TestGetFileURLPrefersBlob(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)

	for _, urlType := range []models.URLType{models.URLTypeView, models.URLTypeDownload} {
		url, err := f.svc.GetFileURL(ctx, result.File.ID, urlType)
		require.NoError(t, err)
		assert.Equal(t, *result.File.BlobURL, url)
	}
}

func TestGetFileURLFallsBackToDrive(t *testing.T) {
	f := newFileFixture(t)
	f.blob.uploadErr = errors.New("blob down")
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	driveID := *result.File.DriveFileID

	view, err := f.svc.GetFileURL(ctx, result.File.ID, models.URLTypeView)
	require.NoError(t, err)
	assert.Equal(t, *result.File.DriveURL, view)

	download, err := f.svc.GetFileURL(ctx, result.File.ID, models.URLTypeDownload)
	require.NoError(t, err)
	assert.Contains(t, download, driveID)
	assert.NotEqual(t, view, download)
}

func TestGetFileURLErrors(t *testing.T) {
	f := newFileFixture(t, FileWithCache(16, time.Minute))
	ctx := context.Background()

	_, err := f.svc.GetFileURL(ctx, uuid.New(), models.URLTypeView)
	assert.ErrorIs(t, err, ErrNotFound)

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	_, err = f.svc.GetFileURL(ctx, result.File.ID, models.URLType("thumbnail"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeleteFileIsIdempotentPerBackend(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)

	// Simulate both remote objects already removed out of band.
	require.NoError(t, f.blob.Delete(ctx, *result.File.BlobPath))
	require.NoError(t, f.drive.Delete(ctx, *result.File.DriveFileID))

	deleted, err := f.svc.DeleteFile(ctx, result.File.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Success)
	assert.Equal(t, BackendAlreadyDeleted, deleted.Backends["blob"])
	assert.Equal(t, BackendAlreadyDeleted, deleted.Backends["drive"])
	assert.Equal(t, 0, f.store.Files.Count())
}

func TestDeleteFileRemovesBothCopies(t *testing.T) {
	f := newFileFixture(t, FileWithCache(16, time.Minute))
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	blobPath := *result.File.BlobPath

	deleted, err := f.svc.DeleteFile(ctx, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, BackendDeleted, deleted.Backends["blob"])
	assert.Equal(t, BackendDeleted, deleted.Backends["drive"])
	assert.False(t, f.blob.has(blobPath))
	assert.Empty(t, f.drive.files)

	_, err = f.svc.GetFileURL(ctx, result.File.ID, models.URLTypeView)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteFilePartialFailureKeepsRecord(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)
	f.drive.deleteErr = errors.New("rate limited")

	deleted, err := f.svc.DeleteFile(ctx, result.File.ID)
	require.ErrorIs(t, err, ErrDeleteIncomplete)
	require.NotNil(t, deleted)
	assert.False(t, deleted.Success)
	assert.Equal(t, BackendDeleted, deleted.Backends["blob"])
	assert.Contains(t, deleted.Backends["drive"], "rate limited")
	assert.Equal(t, 1, f.store.Files.Count())

	// A retry once Drive recovers finishes the delete.
	f.drive.deleteErr = nil
	deleted, err = f.svc.DeleteFile(ctx, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, BackendAlreadyDeleted, deleted.Backends["blob"])
	assert.Equal(t, 0, f.store.Files.Count())
}

func TestDeleteFileSingleBackend(t *testing.T) {
	f := newFileFixture(t)
	f.drive.uploadErr = errors.New("drive down")
	ctx := context.Background()

	result, err := f.upload(t, "hello")
	require.NoError(t, err)

	deleted, err := f.svc.DeleteFile(ctx, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, BackendNotStored, deleted.Backends["drive"])
}

func TestSyncFile(t *testing.T) {
	t.Run("blob only to dual", func(t *testing.T) {
		f := newFileFixture(t)
		f.drive.uploadErr = errors.New("drive down")
		result, err := f.upload(t, "hello")
		require.NoError(t, err)

		f.drive.uploadErr = nil
		synced, err := f.svc.SyncFile(context.Background(), result.File.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StorageDual, synced.StorageLocation)
		require.NotNil(t, synced.DriveFileID)
		assert.Equal(t, []byte("hello"), f.drive.files[*synced.DriveFileID])
	})

	t.Run("drive only to dual", func(t *testing.T) {
		f := newFileFixture(t)
		f.blob.uploadErr = errors.New("blob down")
		result, err := f.upload(t, "hello")
		require.NoError(t, err)

		f.blob.uploadErr = nil
		synced, err := f.svc.SyncFile(context.Background(), result.File.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StorageDual, synced.StorageLocation)
		require.NotNil(t, synced.BlobPath)
		assert.True(t, f.blob.has(*synced.BlobPath))

		stored, err := f.store.Files.GetByID(context.Background(), result.File.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StorageDual, stored.StorageLocation)
	})

	t.Run("drive disabled", func(t *testing.T) {
		f := newFileFixture(t)
		f.svc.drive = nil
		result, err := f.upload(t, "hello")
		require.NoError(t, err)

		_, err = f.svc.SyncFile(context.Background(), result.File.ID)
		assert.ErrorIs(t, err, ErrDriveDisabled)
	})
}

func TestListLeadFilesNewestFirst(t *testing.T) {
	f := newFileFixture(t)
	ctx := context.Background()

	first, err := f.upload(t, "one")
	require.NoError(t, err)
	second, err := f.upload(t, "two")
	require.NoError(t, err)

	files, err := f.svc.ListLeadFiles(ctx, f.lead.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, second.File.ID, files[0].ID)
	assert.Equal(t, first.File.ID, files[1].ID)

	_, err = f.svc.ListLeadFiles(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
