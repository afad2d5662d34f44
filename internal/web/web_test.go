package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
)

type harness struct {
	srv    *Server
	router *gin.Engine
	store  *session.SQLiteStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	store, err := session.OpenSQLite(filepath.Join(dir, "sessions.db"), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	def := metrics.DefaultThresholds()
	cfg := &config.Global{
		Server: config.Server{UploadDir: filepath.Join(dir, "uploads"), MaxUploadMB: 1},
		Thresholds: config.Thresholds{
			FavorableCostCeiling:    def.FavorableCostCeiling,
			FavorableYieldFloor:     def.FavorableYieldFloor,
			ProblematicYieldCeiling: def.ProblematicYieldCeiling,
			ProblematicCostFloor:    def.ProblematicCostFloor,
		},
		Session: config.Session{TTLHours: 1},
	}
	srv, err := New(Deps{Config: cfg, Store: store, ERT: ert.New("", 0, nil)})
	require.NoError(t, err)
	return &harness{srv: srv, router: srv.Router(), store: store}
}

func (h *harness) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookieOf(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", sessionCookie)
	return nil
}

type part struct {
	field, name string
	body        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		fw, err := w.CreateFormFile(p.field, p.name)
		require.NoError(t, err)
		_, err = fw.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func getMetrics(t *testing.T, h *harness, cookie *http.Cookie) metrics.Bundle {
	t.Helper()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/metrics", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var b metrics.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	return b
}

func TestHealthAndStatus(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/status", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"running":true`)
	require.Empty(t, rec.Result().Cookies(), "health endpoints must not create sessions")
}

func TestDashboardCreatesSessionWithDemoData(t *testing.T) {
	h := newHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Borehole Economic Analysis Dashboard")

	c := sessionCookieOf(t, rec)
	require.True(t, session.ValidToken(c.Value))
	require.True(t, c.HttpOnly)

	st, err := h.store.Load(context.Background(), c.Value)
	require.NoError(t, err)
	tbl, err := st.Table()
	require.NoError(t, err)
	require.Equal(t, 6, tbl.Len())

	b := getMetrics(t, h, c)
	require.Equal(t, 6, b.Count)
}

func TestUploadSurveyUpdatesMetrics(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	csv := "Depth_m;Yield_Lps;Cost_USD\n100;2,5;5000\n80;0,5;9000\n"
	rec := h.do(multipartRequest(t, nil, part{"file", "field.csv", []byte(csv)}), c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Loaded and processed 2 records from field.csv")

	b := getMetrics(t, h, c)
	require.Equal(t, 2, b.Count)
	require.InDelta(t, 1.5, b.MeanYield, 1e-9)
	require.InDelta(t, 7000, b.MeanCost, 1e-9)
}

func TestBadSurveyKeepsLastGoodTable(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	rec := h.do(multipartRequest(t, nil, part{"file", "empty.csv", []byte("   \n")}), c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "CSV error:")
	require.Equal(t, 6, getMetrics(t, h, c).Count)

	rec = h.do(multipartRequest(t, nil, part{"file", "notes.pdf", []byte("%PDF")}), c)
	require.Contains(t, rec.Body.String(), "unsupported file type")
	require.Equal(t, 6, getMetrics(t, h, c).Count)
}

func TestSoundingUploadServesSyntheticArtifacts(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	rec := h.do(multipartRequest(t, nil, part{"ert_data", "line1.dat", []byte("binary sounding")}), c)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "ERT data processed: line1.dat")
	require.Contains(t, body, "synthetic, not measured")

	rec = h.do(httptest.NewRequest(http.MethodGet, "/uploads/"+ert.ImageName, nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/uploads/"+ert.ModelName, nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServeArtifactRejectsTraversal(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	for _, p := range []string{"/uploads/..", "/uploads/..%5Csessions.db"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, p, nil), c)
		require.Equal(t, http.StatusBadRequest, rec.Code, p)
		require.Contains(t, rec.Body.String(), "invalid_path")
	}
	rec := h.do(httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil), c)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	h := newHarness(t)
	a := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	b := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	require.NotEqual(t, a.Value, b.Value)

	csv := "Depth_m;Yield_Lps;Cost_USD\n100;2,5;5000\n"
	h.do(multipartRequest(t, nil, part{"file", "a.csv", []byte(csv)}), a)
	h.do(multipartRequest(t, nil, part{"ert_data", "a.dat", []byte("x")}), a)

	require.Equal(t, 1, getMetrics(t, h, a).Count)
	require.Equal(t, 6, getMetrics(t, h, b).Count)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/uploads/"+ert.ImageName, nil), b)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTableCSVDownload(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/table.csv", nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "bh_ea_table.csv")
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 7)
	require.Contains(t, lines[0], "cost_per_m_usd")
}

func TestThresholdsJSONAndRedirect(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	form := url.Values{"fav_yield_min": {"5"}, "fav_cost_max": {"bogus"}}
	req := httptest.NewRequest(http.MethodPost, "/thresholds", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := h.do(req, c)
	require.Equal(t, http.StatusOK, rec.Code)

	var b metrics.Bundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.Equal(t, 5.0, b.Thresholds.FavorableYieldFloor)
	require.Equal(t, metrics.DefaultThresholds().FavorableCostCeiling, b.Thresholds.FavorableCostCeiling)

	req = httptest.NewRequest(http.MethodPost, "/thresholds", strings.NewReader("prob_cost_min=9000"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = h.do(req, c)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, 9000.0, getMetrics(t, h, c).Thresholds.ProblematicCostFloor)
}

func TestReportWithoutImageOrNarrator(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/report", nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Advisories, "No ERT image available for the contour report.")
	require.Contains(t, resp.Advisories, "AI narrative is not configured.")
	require.Empty(t, resp.ReportURL)
	require.Equal(t, "/uploads/"+datasetMetadataName, resp.MetadataURL)
	require.Nil(t, resp.Narrative)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/uploads/"+datasetMetadataName, nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"summary"`)
	require.Contains(t, rec.Body.String(), `"profile"`)
}

func TestReportFromProcessedSection(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	h.do(multipartRequest(t, nil, part{"ert_data", "line1.dat", []byte("x")}), c)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/report", nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "/uploads/"+reportImageName, resp.ReportURL)
	require.NotNil(t, resp.Contours)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/uploads/"+reportImageName, nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFailedReportDropsPreviousReport(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	h.do(multipartRequest(t, nil, part{"ert_data", "line1.dat", []byte("x")}), c)

	rec := h.do(httptest.NewRequest(http.MethodPost, "/api/report", nil), c)
	require.Equal(t, http.StatusOK, rec.Code)

	img := filepath.Join(h.srv.uploadDir, c.Value, ert.ImageName)
	require.NoError(t, os.WriteFile(img, []byte("not an image"), 0o644))

	rec = h.do(httptest.NewRequest(http.MethodPost, "/api/report", nil), c)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.ReportURL)
	require.Nil(t, resp.Contours)
	require.NotEmpty(t, resp.MetadataURL)
	joined := strings.Join(resp.Advisories, "\n")
	require.Contains(t, joined, "Contour report failed")
}

func TestUploadTooLarge(t *testing.T) {
	h := newHarness(t)
	c := sessionCookieOf(t, h.do(httptest.NewRequest(http.MethodGet, "/", nil), nil))
	big := bytes.Repeat([]byte("a"), 2<<20)
	rec := h.do(multipartRequest(t, nil, part{"file", "big.csv", big}), c)
	require.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
	require.Equal(t, 6, getMetrics(t, h, c).Count)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	var k keyedMutex
	unlock := k.lock("a")
	done := make(chan struct{})
	go func() {
		u := k.lock("a")
		u()
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-done
	require.Empty(t, k.m)
}
