// Package storage publishes report artifacts so a narrative service (or a
// colleague) can fetch them by URL.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
)

// Publisher uploads a local file under key and returns a fetchable URL.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, localPath, key string) (string, error)
}

// PublishError reports a failed upload. The dashboard shows it as an advisory.
type PublishError struct {
	Backend string
	Key     string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.Key, e.Backend, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Key builds an object key for a session artifact.
func Key(token, localPath string) string {
	return path.Join("sessions", token, filepath.Base(localPath))
}

// Open selects a backend. localBaseURL is the dashboard's own public URL,
// used when nothing is uploaded.
func Open(ctx context.Context, c config.Storage, localBaseURL string) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", "none", "local":
		return &LocalPublisher{BaseURL: localBaseURL}, nil
	case "minio", "s3":
		p, err := NewMinio(c)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "gcs":
		p, err := NewGCS(ctx, c)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

// LocalPublisher does not copy anything; artifacts are already served from
// /uploads/ for the owning session.
type LocalPublisher struct {
	BaseURL string
}

func (p *LocalPublisher) Name() string { return "local" }

func (p *LocalPublisher) Publish(_ context.Context, localPath, _ string) (string, error) {
	return strings.TrimRight(p.BaseURL, "/") + "/uploads/" + filepath.Base(localPath), nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func objectURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + key
}
