package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
)

func openTestStore(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "sessions.db"), ttl)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFreshSessionHasDemoTable(t *testing.T) {
	s, err := Fresh(NewToken(), metrics.DefaultThresholds())
	if err != nil {
		t.Fatalf("Fresh: %v", err)
	}
	tbl, err := s.Table()
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if tbl.Len() != survey.Demo().Len() {
		t.Fatalf("rows = %d", tbl.Len())
	}
	if !tbl.Has(survey.ColCostPerDepth) {
		t.Fatalf("round-tripped demo table should carry derived cost_per_m")
	}
	if s.Thresholds != metrics.DefaultThresholds() {
		t.Fatalf("thresholds = %+v", s.Thresholds)
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	st := openTestStore(t, time.Hour)
	ctx := context.Background()
	s, _ := Fresh(NewToken(), metrics.DefaultThresholds())
	s.Thresholds.FavorableYieldFloor = 3
	s.ProcessedImage = "ert_result.png"
	s.Narrative = &narrative.Interpretation{Summary: "ok", FavorableSites: []string{"1"}}
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.UploadedImage = "preview.png"
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err := st.Load(ctx, s.Token)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Thresholds.FavorableYieldFloor != 3 || got.UploadedImage != "preview.png" || got.TableCSV != s.TableCSV {
		t.Fatalf("loaded = %+v", got)
	}
	if got.Narrative == nil || got.Narrative.Summary != "ok" {
		t.Fatalf("narrative not persisted: %+v", got.Narrative)
	}
	if len(got.Artifacts()) != 2 {
		t.Fatalf("artifacts = %v", got.Artifacts())
	}

	if err := st.Delete(ctx, s.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Load(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLiteExpiry(t *testing.T) {
	st := openTestStore(t, time.Hour)
	ctx := context.Background()
	s, _ := Fresh(NewToken(), metrics.DefaultThresholds())
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	old := time.Now().UTC().Add(-2 * time.Hour)
	if err := st.db.Model(&sessionRecord{}).Where("token = ?", s.Token).Update("updated_at", old).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := st.Load(ctx, s.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired session should not load, got %v", err)
	}
	tokens, err := st.Prune(ctx)
	if err != nil || len(tokens) != 1 || tokens[0] != s.Token {
		t.Fatalf("Prune = %v, %v", tokens, err)
	}
}

func TestUnknownTokenAndBackend(t *testing.T) {
	st := openTestStore(t, 0)
	if _, err := st.Load(context.Background(), NewToken()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := Open(config.Session{Backend: "etcd"}); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestValidToken(t *testing.T) {
	if !ValidToken(NewToken()) {
		t.Fatalf("fresh token rejected")
	}
	for _, bad := range []string{"", "../etc", "not-a-uuid"} {
		if ValidToken(bad) {
			t.Fatalf("accepted %q", bad)
		}
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("BHEA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set BHEA_TEST_REDIS_ADDR to run against a live Redis")
	}
	st, err := OpenRedis(addr, 0, time.Minute)
	if err != nil {
		t.Fatalf("OpenRedis: %v", err)
	}
	defer st.Close()
	ctx := context.Background()
	s, _ := Fresh(NewToken(), metrics.DefaultThresholds())
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load(ctx, s.Token)
	if err != nil || got.TableCSV != s.TableCSV {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	_ = st.Delete(ctx, s.Token)
}
