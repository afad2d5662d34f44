package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"api_key", "sk-123", "path", "/tmp/x", "session_token", "abc", "dangling"})
	if len(out) != 7 {
		t.Fatalf("len = %d, want 7", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key not redacted: %v", out[1])
	}
	if out[3] != "/tmp/x" {
		t.Fatalf("path altered: %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("session_token not redacted: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("odd trailing key dropped: %v", out)
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("hello", "k", 1)
	l.Warn("warned")
	l.Sync()
}
