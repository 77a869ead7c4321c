package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/blobs/")
	require.NoError(t, err)

	fileID := uuid.New()
	obj, err := s.Upload(ctx, fileID, "roof photo.jpg", "", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Path, fileID.String()[:2]+"/"))
	assert.True(t, strings.HasSuffix(obj.Path, "_roof_photo.jpg"))
	assert.Equal(t, "http://localhost:8080/blobs/"+obj.Path, obj.URL)

	r, err := s.Download(ctx, obj.Path)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	require.NoError(t, s.Delete(ctx, obj.Path))
	assert.ErrorIs(t, s.Delete(ctx, obj.Path), ErrObjectNotFound)

	_, err = s.Download(ctx, obj.Path)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("a.png", "image/png"))
	assert.Equal(t, "application/pdf", ContentType("estimate.PDF", ""))
	assert.Equal(t, "application/msword", ContentType("contract.doc", ""))
	assert.Equal(t, "application/octet-stream", ContentType("blob.unknownext", ""))
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename=estimate.pdf`, contentDisposition("estimate.pdf", true))
	assert.Equal(t, `inline; filename="roof photo.jpg"`, contentDisposition("roof photo.jpg", false))
}
