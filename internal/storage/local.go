package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tastebook/apiserver/config"
)

// LocalStore writes photos to a directory on local disk. The server
// serves the directory at /uploads/ so the returned URLs resolve.
type LocalStore struct {
	dir           string
	publicBaseURL string
}

// NewLocalStore constructs a filesystem-backed photo store, creating
// the uploads directory if needed.
func NewLocalStore(cfg config.LocalStorageConfig, publicBaseURL string) (*LocalStore, error) {
	dir := cfg.Dir
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	return &LocalStore{
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Store writes the photo to disk and returns a URL under /uploads/.
// The partial file is removed on a failed write.
func (l *LocalStore) Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(l.dir, filepath.Base(key))

	file, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return fmt.Sprintf("%s/uploads/%s", l.publicBaseURL, filepath.Base(key)), nil
}

// Name identifies the backend.
func (l *LocalStore) Name() string {
	return "local"
}

// Dir returns the directory files are written to.
func (l *LocalStore) Dir() string {
	return l.dir
}
