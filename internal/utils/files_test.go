package utils_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

func TestSafeWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.txt")
	if err := utils.SafeWriteFile(p, []byte("hello")); err != nil {
		t.Fatalf("SafeWriteFile: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "hello" {
		t.Fatalf("read back = %q, %v", b, err)
	}
	if _, err := os.Stat(p + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestResolveWithinRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	for _, bad := range []string{"", "..", "../etc/passwd", "a/b.png", `..\x`} {
		if _, err := utils.ResolveWithin(dir, bad); !errors.Is(err, utils.ErrUnsafePath) {
			t.Errorf("%q: expected ErrUnsafePath, got %v", bad, err)
		}
	}
	got, err := utils.ResolveWithin(dir, "ert_result.png")
	if err != nil {
		t.Fatalf("ResolveWithin: %v", err)
	}
	if got != filepath.Join(dir, "ert_result.png") {
		t.Fatalf("got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"survey data.csv":       "survey_data.csv",
		"../../etc/passwd":      "passwd",
		`C:\uploads\line 1.dat`: "line_1.dat",
		"..hidden":              "hidden",
		"":                      "",
	}
	for in, want := range cases {
		if got := utils.SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
