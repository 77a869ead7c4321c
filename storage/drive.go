package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveScope is the scope the backend needs to manage lead folders
const DriveScope = drive.DriveScope

// DriveObject is a file stored in Google Drive
type DriveObject struct {
	ID          string
	ViewURL     string
	DownloadURL string
}

// DriveStorage is the secondary backend: one Drive folder per lead under a shared parent folder
type DriveStorage struct {
	svc            *drive.Service
	sharedFolderID string
}

// NewDriveStorage creates a Drive client. Callers pass credentials as client options,
// typically option.WithTokenSource built from the service account.
func NewDriveStorage(ctx context.Context, sharedFolderID string, opts ...option.ClientOption) (*DriveStorage, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	return &DriveStorage{svc: svc, sharedFolderID: sharedFolderID}, nil
}

// EnsureFolder returns the ID of the folder called name under the shared parent, creating it if needed
func (d *DriveStorage) EnsureFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(d.sharedFolderID), folderMimeType)

	list, err := d.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to search Drive folder: %w", err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}

	folder, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{d.sharedFolderID},
	}).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create Drive folder: %w", err)
	}
	return folder.Id, nil
}

// Upload stores data as filename inside folderID
func (d *DriveStorage) Upload(ctx context.Context, folderID, filename, contentType string, data io.Reader) (*DriveObject, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     filename,
		MimeType: ContentType(filename, contentType),
		Parents:  []string{folderID},
	}).
		Media(data, googleapi.ContentType(ContentType(filename, contentType))).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Drive: %w", err)
	}

	view := f.WebViewLink
	if view == "" {
		view = DriveViewURL(f.Id)
	}
	return &DriveObject{ID: f.Id, ViewURL: view, DownloadURL: DriveDownloadURL(f.Id)}, nil
}

// Download streams a Drive file's content
func (d *DriveStorage) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := d.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		if isDriveNotFound(err) {
			return nil, fmt.Errorf("%w: drive file %s", ErrObjectNotFound, fileID)
		}
		return nil, fmt.Errorf("failed to download from Drive: %w", err)
	}
	return resp.Body, nil
}

// Delete permanently removes a Drive file
func (d *DriveStorage) Delete(ctx context.Context, fileID string) error {
	err := d.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		if isDriveNotFound(err) {
			return fmt.Errorf("%w: drive file %s", ErrObjectNotFound, fileID)
		}
		return fmt.Errorf("failed to delete from Drive: %w", err)
	}
	return nil
}

// DriveViewURL is the browser link for a Drive file
func DriveViewURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", fileID)
}

// DriveDownloadURL is the direct download link for a Drive file
func DriveDownloadURL(fileID string) string {
	return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID)
}

func isDriveNotFound(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone)
}

// escapeQuery escapes a value for a Drive search query string literal.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
