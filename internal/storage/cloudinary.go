package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/tastebook/apiserver/config"
)

// CloudinaryStore uploads photos to Cloudinary.
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore constructs a Cloudinary-backed photo store from a
// CLOUDINARY_URL-style connection string.
func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("cloudinary url is required")
	}

	client, err := cloudinary.NewFromURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	return &CloudinaryStore{
		client: client,
		folder: cfg.Folder,
	}, nil
}

// Store uploads the photo and returns its delivery URL.
func (c *CloudinaryStore) Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	publicID := strings.TrimSuffix(key, extension(key))

	result, err := c.client.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:     publicID,
		Folder:       c.folder,
		ResourceType: "image",
	})
	if err != nil {
		return "", err
	}
	// The SDK reports API-level failures on the result, not as an error.
	if result.Error.Message != "" {
		return "", errors.New(result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", errors.New("cloudinary returned no url")
	}
	return result.SecureURL, nil
}

// Name identifies the backend.
func (c *CloudinaryStore) Name() string {
	return "cloudinary"
}

func extension(key string) string {
	if idx := strings.LastIndexByte(key, '.'); idx > 0 {
		return key[idx:]
	}
	return ""
}
