package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"roofcrm-backend/models"
	"roofcrm-backend/repository/memstore"
	"roofcrm-backend/service"
	"roofcrm-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memDrive struct {
	mu        sync.Mutex
	files     map[string][]byte
	uploadErr error
}

func (d *memDrive) EnsureFolder(_ context.Context, name string) (string, error) {
	return "folder-" + name, nil
}

func (d *memDrive) Upload(_ context.Context, _, _, _ string, data io.Reader) (*storage.DriveObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadErr != nil {
		return nil, d.uploadErr
	}
	content, _ := io.ReadAll(data)
	id := uuid.NewString()
	d.files[id] = content
	return &storage.DriveObject{ID: id, ViewURL: storage.DriveViewURL(id), DownloadURL: storage.DriveDownloadURL(id)}, nil
}

func (d *memDrive) Download(_ context.Context, id string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.files[id]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *memDrive) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[id]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(d.files, id)
	return nil
}

// failingBlob rejects every write
type failingBlob struct{}

func (failingBlob) Type() storage.StorageType { return "failing" }

func (failingBlob) Upload(context.Context, uuid.UUID, string, string, io.Reader) (*storage.Object, error) {
	return nil, errors.New("blob backend unavailable")
}

func (failingBlob) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (failingBlob) Delete(context.Context, string) error {
	return storage.ErrObjectNotFound
}

type sentMessage struct {
	to    string
	event models.NotificationEvent
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingChannel) Name() string { return "gmail" }

func (r *recordingChannel) Send(_ context.Context, to models.Recipient, msg models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: to.Email, event: msg.Event})
	return nil
}

func (r *recordingChannel) count(event models.NotificationEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if m.event == event {
			n++
		}
	}
	return n
}

type testEnv struct {
	store  *memstore.Store
	drive  *memDrive
	mail   *recordingChannel
	auth   *service.AuthService
	router *gin.Engine
}

type envOptions struct {
	blob storage.Storage
}

func newTestEnv(t *testing.T, opts ...func(*envOptions)) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	o := &envOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.blob == nil {
		local, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/uploads")
		require.NoError(t, err)
		o.blob = local
	}

	env := &testEnv{
		store: memstore.New(),
		drive: &memDrive{files: make(map[string][]byte)},
		mail:  &recordingChannel{},
	}
	env.auth = service.NewAuthService(
		service.AuthWithUserRepository(env.store.Users),
		service.AuthWithSecret("0123456789abcdef0123", time.Hour),
	)

	files := service.NewFileService(
		service.FileWithFileRepository(env.store.Files),
		service.FileWithLeadRepository(env.store.Leads),
		service.FileWithBlobStorage(o.blob),
		service.FileWithDriveStorage(env.drive),
		service.FileWithMaxFileSize(1024),
		service.FileWithLogger(logger),
	)
	notifications := service.NewNotificationService(
		service.NotificationWithUserRepository(env.store.Users),
		service.NotificationWithActivityRepository(env.store.Activities),
		service.NotificationWithChannel(env.mail),
		service.NotificationWithDelivery(time.Second, 4),
		service.NotificationWithLogger(logger),
	)
	leads := service.NewLeadService(
		service.LeadWithLeadRepository(env.store.Leads),
		service.LeadWithActivityRepository(env.store.Activities),
		service.LeadWithFileService(files),
		service.LeadWithNotificationService(notifications),
		service.LeadWithLogger(logger),
	)
	deletions := service.NewDeletionService(
		service.DeletionWithRequestRepository(env.store.DeletionRequests),
		service.DeletionWithLeadRepository(env.store.Leads),
		service.DeletionWithUserRepository(env.store.Users),
		service.DeletionWithActivityRepository(env.store.Activities),
		service.DeletionWithLogger(logger),
	)

	env.router = NewRouter(RouterConfig{
		Logger:        logger,
		Authenticator: env.auth,
		Auth:          NewAuthHandler(env.auth, logger),
		Leads:         NewLeadHandler(leads, logger),
		Files:         NewFileHandler(files, notifications, logger),
		Deletions:     NewDeletionRequestHandler(deletions, leads, notifications, logger),
	})
	return env
}

func withBlob(blob storage.Storage) func(*envOptions) {
	return func(o *envOptions) { o.blob = blob }
}

// addUser stores an active user and returns it with a bearer token
func (e *testEnv) addUser(t *testing.T, name, email string, role models.Role) (*models.User, string) {
	t.Helper()
	hash, err := service.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{Name: name, Email: email, Role: role, Active: true, PasswordHash: hash}
	require.NoError(t, e.store.Users.Create(context.Background(), user))
	token, _, err := e.auth.IssueToken(user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) addLead(t *testing.T, name string) *models.Lead {
	t.Helper()
	lead := &models.Lead{Name: name, Status: models.LeadStatusNew}
	require.NoError(t, e.store.Leads.Create(context.Background(), lead))
	return lead
}

func (e *testEnv) do(t *testing.T, method, path, token, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return e.do(t, method, path, token, "application/json", body)
}

func (e *testEnv) upload(t *testing.T, path, token string, fields map[string]string, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return e.do(t, http.MethodPost, path, token, w.FormDataContentType(), &buf)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has no error object: %s", rec.Body.String())
	code, _ := errObj["code"].(string)
	return code
}
