package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"roofcrm-backend/models"
	"roofcrm-backend/storage"

	"github.com/google/uuid"
)

type fakeBlob struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	uploads   int
	emptyURL  bool
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{objects: make(map[string][]byte)}
}

func (b *fakeBlob) Type() storage.StorageType { return "fake" }

func (b *fakeBlob) Upload(_ context.Context, fileID uuid.UUID, filename, _ string, data io.Reader) (*storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads++
	if b.uploadErr != nil {
		return nil, b.uploadErr
	}
	content, _ := io.ReadAll(data)
	path := fileID.String() + "/" + filename
	b.objects[path] = content
	if b.emptyURL {
		return &storage.Object{Path: path}, nil
	}
	return &storage.Object{Path: path, URL: "https://blob.test/" + path}, nil
}

func (b *fakeBlob) Download(_ context.Context, path string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.objects[path]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *fakeBlob) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.objects[path]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, path)
	}
	delete(b.objects, path)
	return nil
}

func (b *fakeBlob) has(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok
}

type fakeDrive struct {
	mu            sync.Mutex
	folders       map[string]string
	files         map[string][]byte
	folderCalls   int
	uploadErr     error
	folderErr     error
	deleteErr     error
	uploadFolders []string
	// alwaysCreate makes every lookup miss, as two racing first uploads would.
	alwaysCreate bool
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{folders: make(map[string]string), files: make(map[string][]byte)}
}

func (d *fakeDrive) EnsureFolder(_ context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.folderCalls++
	if d.folderErr != nil {
		return "", d.folderErr
	}
	if id, ok := d.folders[name]; ok && !d.alwaysCreate {
		return id, nil
	}
	id := "folder-" + uuid.NewString()[:8]
	d.folders[name] = id
	return id, nil
}

func (d *fakeDrive) Upload(_ context.Context, folderID, filename, _ string, data io.Reader) (*storage.DriveObject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadFolders = append(d.uploadFolders, folderID)
	if d.uploadErr != nil {
		return nil, d.uploadErr
	}
	content, _ := io.ReadAll(data)
	id := "drive-" + uuid.NewString()[:8]
	d.files[id] = content
	return &storage.DriveObject{ID: id, ViewURL: storage.DriveViewURL(id), DownloadURL: storage.DriveDownloadURL(id)}, nil
}

func (d *fakeDrive) Download(_ context.Context, fileID string) (io.ReadCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	content, ok := d.files[fileID]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (d *fakeDrive) Delete(_ context.Context, fileID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	if _, ok := d.files[fileID]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(d.files, fileID)
	return nil
}

type fakeChannel struct {
	mu       sync.Mutex
	name     string
	failFor  map[string]bool
	attempts map[string]int
	messages []models.Message
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, failFor: map[string]bool{}, attempts: map[string]int{}}
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, to models.Recipient, msg models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[to.Email]++
	c.messages = append(c.messages, msg)
	if c.failFor[to.Email] {
		return errors.New("mailbox unavailable")
	}
	return nil
}

func (c *fakeChannel) totalAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.attempts {
		n += v
	}
	return n
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	posts []models.Message
	err   error
}

func (b *fakeBroadcaster) Name() string { return "slack" }

func (b *fakeBroadcaster) Broadcast(_ context.Context, msg models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, msg)
	return b.err
}
