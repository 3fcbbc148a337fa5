package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
)

type fakePhotoStore struct {
	stored []string
	err    error
}

func (f *fakePhotoStore) Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, key)
	return "https://photos.example/" + key, nil
}

func (f *fakePhotoStore) Name() string { return "fake" }

func multipartPhotoRequest(t *testing.T, field, filename string, size int) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("a"), size))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(withIdentity(req.Context(), types.User{ID: 4, Role: types.RoleUser}))
	return req
}

func TestUploadPhotoSuccess(t *testing.T) {
	photos := &fakePhotoStore{}
	handler := NewUploadHandler(photos, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.UploadPhoto(rec, multipartPhotoRequest(t, formFieldPhoto, "soup day.jpg", 128))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, photos.stored, 1)
	assert.Contains(t, photos.stored[0], "soup-day.jpg")
	assert.Contains(t, rec.Body.String(), "https://photos.example/")
}

func TestUploadPhotoMissingFile(t *testing.T) {
	handler := NewUploadHandler(&fakePhotoStore{}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.UploadPhoto(rec, multipartPhotoRequest(t, "attachment", "soup.jpg", 128))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPhotoTooLarge(t *testing.T) {
	cases := map[string]int{
		"just over the file limit": (10 << 20) + 1,
		"over the body cap":        16 << 20,
	}
	for name, size := range cases {
		photos := &fakePhotoStore{}
		handler := NewUploadHandler(photos, zap.NewNop())

		rec := httptest.NewRecorder()
		handler.UploadPhoto(rec, multipartPhotoRequest(t, formFieldPhoto, "huge.jpg", size))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, name)
		assert.Empty(t, photos.stored, "nothing reaches the backend", name)
	}
}

func TestUploadPhotoBackendFailure(t *testing.T) {
	handler := NewUploadHandler(&fakePhotoStore{err: errors.New("cloud down")}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.UploadPhoto(rec, multipartPhotoRequest(t, formFieldPhoto, "soup.jpg", 128))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "upload failed")
}
