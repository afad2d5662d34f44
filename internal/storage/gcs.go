package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
)

const gcsPublicURL = "https://storage.googleapis.com"

// GCSPublisher uploads to a Google Cloud Storage bucket using application
// default credentials.
type GCSPublisher struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

func NewGCS(ctx context.Context, c config.Storage) (*GCSPublisher, error) {
	if c.Bucket == "" {
		return nil, errors.New("storage.bucket is required")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	base := c.PublicBaseURL
	if base == "" {
		base = gcsPublicURL
	}
	return &GCSPublisher{client: client, bucket: c.Bucket, baseURL: base}, nil
}

func (p *GCSPublisher) Name() string { return "gcs" }

func (p *GCSPublisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", &PublishError{Backend: p.Name(), Key: key, Err: err}
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForKey(key)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", &PublishError{Backend: p.Name(), Key: key, Err: fmt.Errorf("write: %w", err)}
	}
	if err := w.Close(); err != nil {
		return "", &PublishError{Backend: p.Name(), Key: key, Err: fmt.Errorf("close writer: %w", err)}
	}
	return objectURL(p.baseURL, p.bucket, key), nil
}
