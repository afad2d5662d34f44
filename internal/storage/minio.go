package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
)

// MinioPublisher uploads to an S3-compatible bucket, creating it on first use.
type MinioPublisher struct {
	client  *minio.Client
	bucket  string
	baseURL string

	mu          sync.Mutex
	bucketReady bool
}

// NewMinio builds the client. No network traffic happens until Publish.
func NewMinio(c config.Storage) (*MinioPublisher, error) {
	if c.MinioEndpoint == "" {
		return nil, errors.New("storage.minio_endpoint is required for the minio backend")
	}
	if c.Bucket == "" {
		return nil, errors.New("storage.bucket is required")
	}
	client, err := minio.New(c.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.MinioAccessKey, c.MinioSecretKey, ""),
		Secure: c.MinioSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}
	base := c.PublicBaseURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	return &MinioPublisher{client: client, bucket: c.Bucket, baseURL: base}, nil
}

func (p *MinioPublisher) Name() string { return "minio" }

func (p *MinioPublisher) Publish(ctx context.Context, localPath, key string) (string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return "", &PublishError{Backend: p.Name(), Key: key, Err: err}
	}
	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentTypeForKey(key)})
	if err != nil {
		return "", &PublishError{Backend: p.Name(), Key: key, Err: err}
	}
	return objectURL(p.baseURL, p.bucket, key), nil
}

func (p *MinioPublisher) ensureBucket(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bucketReady {
		return nil
	}
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("error creating bucket %s: %w", p.bucket, err)
		}
	}
	p.bucketReady = true
	return nil
}
