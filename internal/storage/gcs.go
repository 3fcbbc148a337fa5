package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/tastebook/apiserver/config"
	"google.golang.org/api/option"
)

// GCSStore uploads photos to a Google Cloud Storage bucket. The bucket
// must allow public reads for the returned URLs to resolve.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore constructs a GCS-backed photo store from config.
func NewGCSStore(ctx context.Context, cfg config.GCSConfig) (*GCSStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Store uploads the photo and returns its public object URL.
func (g *GCSStore) Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	writer := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	if strings.TrimSpace(contentType) != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, key), nil
}

// Name identifies the backend.
func (g *GCSStore) Name() string {
	return "gcs"
}

// Close closes the underlying GCS SDK client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}
