package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tastebook/apiserver/internal/storage"
	"go.uber.org/zap"
)

const (
	formFieldPhoto     = "photo"
	maxMultipartMemory = 12 << 20

	// maxUploadBody caps the request body ahead of multipart parsing:
	// the photo limit plus slack for form framing. Files inside the
	// slack are still caught by the per-file size check.
	maxUploadBody = storage.MaxPhotoBytes + 64<<10
)

// UploadHandler accepts photo uploads and stores them via the
// configured backend.
type UploadHandler struct {
	photos storage.PhotoStore
	logger *zap.Logger
}

// NewUploadHandler constructs a handler with the provided photo store.
func NewUploadHandler(photos storage.PhotoStore, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		photos: photos,
		logger: logger,
	}
}

// UploadRouter registers upload routes on the given router.
func UploadRouter(r chi.Router, photos storage.PhotoStore, logger *zap.Logger) {
	handler := NewUploadHandler(photos, logger)

	r.With(RequireAuth).Post("/", handler.UploadPhoto)
}

// UploadPhoto stores the multipart "photo" field and returns its public
// URL. A cloud backend failure is an error; there is no silent fallback
// to local disk.
func (h *UploadHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	actor, _ := identityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "photo exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	// Staged temp files are removed best-effort once the upload is done.
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(formFieldPhoto)
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer file.Close()

	if header.Size > storage.MaxPhotoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "photo exceeds the size limit")
		return
	}

	key := fmt.Sprintf("%d-%d-%s", actor.ID, time.Now().UnixNano(), storage.SanitizeFilename(header.Filename))
	contentType := header.Header.Get("Content-Type")

	url, err := h.photos.Store(r.Context(), key, file, header.Size, contentType)
	if err != nil {
		h.logger.Error("store photo",
			zap.String("backend", h.photos.Name()),
			zap.String("key", key),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
