package storage

import (
	"context"
	"io"
	"strings"

	"github.com/tastebook/apiserver/config"
)

// MaxPhotoBytes is the upload size limit.
const MaxPhotoBytes = 10 << 20

// PhotoStore accepts an uploaded image and returns a durable, publicly
// fetchable URL. A single backend is selected once at startup; there is
// no fallback between backends at request time.
type PhotoStore interface {
	Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Name() string
}

// FromConfig selects a backend by credential presence, in priority
// order: Cloudinary, Google Cloud Storage, S3-compatible, local disk.
func FromConfig(ctx context.Context, cfg config.StorageConfig, publicBaseURL string) (PhotoStore, error) {
	switch {
	case strings.TrimSpace(cfg.Cloudinary.URL) != "":
		return NewCloudinaryStore(cfg.Cloudinary)
	case strings.TrimSpace(cfg.GCS.Bucket) != "":
		return NewGCSStore(ctx, cfg.GCS)
	case strings.TrimSpace(cfg.S3.Endpoint) != "":
		return NewS3Store(cfg.S3)
	default:
		return NewLocalStore(cfg.Local, publicBaseURL)
	}
}

// SanitizeFilename reduces a client-supplied filename to a safe
// character set. The result is never empty.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	clean := strings.Trim(b.String(), ".-")
	if clean == "" {
		return "photo"
	}
	return clean
}
