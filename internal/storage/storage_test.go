package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
)

func TestLocalPublisher(t *testing.T) {
	p, err := Open(context.Background(), config.Storage{Backend: "none"}, "http://dash.local/")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	url, err := p.Publish(context.Background(), "/tmp/x/abc/contour.png", Key("abc", "/tmp/x/abc/contour.png"))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if url != "http://dash.local/uploads/contour.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestKey(t *testing.T) {
	if got := Key("tok", "/a/b/ert_model.json"); got != "sessions/tok/ert_model.json" {
		t.Fatalf("Key = %q", got)
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	if _, err := Open(context.Background(), config.Storage{Backend: "ftp"}, ""); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	if _, err := Open(context.Background(), config.Storage{Backend: "minio", Bucket: "b"}, ""); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
}

func TestMinioPublishFailureIsTyped(t *testing.T) {
	p, err := NewMinio(config.Storage{MinioEndpoint: "127.0.0.1:1", Bucket: "bhea-test", MinioAccessKey: "k", MinioSecretKey: "s"})
	if err != nil {
		t.Fatalf("NewMinio: %v", err)
	}
	f := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(f, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = p.Publish(ctx, f, Key("tok", f))
	var pe *PublishError
	if !errors.As(err, &pe) || pe.Backend != "minio" {
		t.Fatalf("expected PublishError, got %v", err)
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{"a.PNG": "image/png", "b.json": "application/json", "c.csv": "text/csv", "d.bin": "application/octet-stream"}
	for k, want := range cases {
		if got := contentTypeForKey(k); got != want {
			t.Fatalf("%s: %s, want %s", k, got, want)
		}
	}
}
