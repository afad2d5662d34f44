package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
)

// resetFlags restores every flag to its default so Changed state does not
// leak between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args against a private config file and
// returns stdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", testConfigPath(t), "--log-mode", "quiet"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is execCmd for invocations expected to succeed.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

var configPaths = map[string]string{}

func testConfigPath(t *testing.T) string {
	t.Helper()
	p, ok := configPaths[t.Name()]
	if !ok {
		p = filepath.Join(t.TempDir(), "config.yaml")
		configPaths[t.Name()] = p
	}
	return p
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

const surveyCSV = "District;Depth_m;Yield_Lps;Cost_USD\nAmathole;100;2,5;1500\nBCM;80;0,5;9000\n"

func TestCLI_NormalizeWritesCanonicalCSV(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "survey.csv", surveyCSV)

	out := runCmd(t, "normalize", in)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), out)
	}
	for _, col := range []string{"district", "depth_m", "yield_lps", "cost_usd", "cost_per_m_usd"} {
		if !strings.Contains(lines[0], col) {
			t.Fatalf("header %q missing %s", lines[0], col)
		}
	}

	dst := filepath.Join(dir, "out", "canonical.csv")
	runCmd(t, "normalize", in, "-o", dst)
	b, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(b) != out {
		t.Fatalf("file output differs from stdout output")
	}

	// Normalizing the canonical form again is a no-op.
	if again := runCmd(t, "normalize", dst); again != out {
		t.Fatalf("normalize is not idempotent:\n%s\nvs\n%s", out, again)
	}
}

func TestCLI_NormalizeRejectsEmptyInput(t *testing.T) {
	in := writeFile(t, t.TempDir(), "empty.csv", "")
	if _, err := execCmd(t, "normalize", in); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestCLI_SummarizeAppliesThresholdFlags(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "survey.csv", surveyCSV)

	var s fileSummary
	if err := json.Unmarshal([]byte(runCmd(t, "summarize", in)), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Metrics == nil || s.Metrics.Count != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Metrics.FavorableCount != 1 || s.Metrics.ProblematicCount != 1 {
		t.Fatalf("default classification = %d/%d", s.Metrics.FavorableCount, s.Metrics.ProblematicCount)
	}

	if err := json.Unmarshal([]byte(runCmd(t, "summarize", in, "--fav_cost_max", "1000")), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Metrics.FavorableCount != 0 {
		t.Fatalf("fav_cost_max flag not applied: %+v", s.Metrics.Thresholds)
	}
}

func TestCLI_SummarizeBatchReportsPerFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", surveyCSV)
	writeFile(t, dir, "b.csv", "")

	var out []fileSummary
	if err := json.Unmarshal([]byte(runCmd(t, "summarize", filepath.Join(dir, "*.csv"))), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Metrics == nil || out[1].Error == "" {
		t.Fatalf("unexpected batch result: %+v", out)
	}

	if _, err := execCmd(t, "summarize", filepath.Join(dir, "b.csv")); err == nil {
		t.Fatalf("expected error when every file fails")
	}
}

func TestCLI_ERTThenContour(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "line1.dat", "opaque instrument dump")
	outDir := filepath.Join(dir, "ert")

	var art struct {
		Image      string `json:"image"`
		Provenance string `json:"provenance"`
	}
	if err := json.Unmarshal([]byte(runCmd(t, "ert", in, "--out", outDir)), &art); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if art.Provenance != string(ert.ProvenanceSynthetic) {
		t.Fatalf("provenance = %q", art.Provenance)
	}
	for _, name := range []string{ert.ImageName, ert.ModelName, ert.MetadataName} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	report := filepath.Join(dir, "report.png")
	runCmd(t, "contour", art.Image, report, "--title", "Line 1")
	if _, err := os.Stat(report); err != nil {
		t.Fatalf("missing report: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.json")); err != nil {
		t.Fatalf("missing sidecar: %v", err)
	}

	if _, err := execCmd(t, "contour", art.Image, report, "--level", "1.5"); err == nil {
		t.Fatalf("expected error for out-of-range level")
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	runCmd(t, "config", "set", "thresholds.favorable_yield_floor", "2.5")
	runCmd(t, "config", "set", "narrative.api_key", "sk-abcdefghijkl")
	out := runCmd(t, "config", "show")
	if !strings.Contains(out, "fav_yield_min=2.5") {
		t.Fatalf("threshold not persisted:\n%s", out)
	}
	if strings.Contains(out, "sk-abcdefghijkl") || !strings.Contains(out, "sk-****jkl") {
		t.Fatalf("api key not masked:\n%s", out)
	}
	if _, err := execCmd(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := execCmd(t, "config", "set", "narrative.provider", "skynet"); err == nil {
		t.Fatalf("expected invalid provider error")
	}
}

func TestCLI_NarratePrintPromptAndNotConfigured(t *testing.T) {
	out := runCmd(t, "narrate", "--print-prompt", "--provenance", "synthetic")
	if !strings.Contains(out, "Dataset summary (JSON)") || !strings.Contains(out, "synthetic field") {
		t.Fatalf("unexpected prompt:\n%s", out)
	}
	if _, err := execCmd(t, "narrate"); err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not-configured error, got %v", err)
	}
}

func TestCLI_ProfileMarkdownAndJSON(t *testing.T) {
	in := writeFile(t, t.TempDir(), "survey.csv", surveyCSV)
	md := runCmd(t, "profile", in)
	if !strings.Contains(md, "[SCHEMA]") || !strings.Contains(md, "- Amathole (n=1)") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
	var p struct {
		Rows int `json:"rows"`
	}
	if err := json.Unmarshal([]byte(runCmd(t, "profile", in, "--json")), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Rows != 2 {
		t.Fatalf("rows = %d", p.Rows)
	}
}

func TestCLI_NarrateProviderFlagFindsItsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-or-env" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"interpretation_summary\":\"shallow aquifer\"}"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("OPENROUTER_API_KEY", "sk-or-env")
	runCmd(t, "config", "set", "narrative.base_url", srv.URL)
	out := runCmd(t, "narrate", "--provider", "openrouter", "--model", "test-model")

	var interp struct {
		Summary string `json:"interpretation_summary"`
	}
	if err := json.Unmarshal([]byte(out), &interp); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if interp.Summary != "shallow aquifer" {
		t.Fatalf("summary = %q", interp.Summary)
	}
}
