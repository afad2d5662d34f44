package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/yangatekane/bh-ea-dashboard/internal/analysis"
	"github.com/yangatekane/bh-ea-dashboard/internal/contour"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
	"github.com/yangatekane/bh-ea-dashboard/internal/storage"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

// Report artifact names inside a session directory.
const (
	reportImageName     = "contour_report.png"
	datasetMetadataName = "dataset_metadata.json"
)

func (s *Server) apiMetrics(c *gin.Context) {
	bundle, adv := s.aggregate(currentState(c))
	bundle.Advisories = adv
	RespondOK(c, bundle)
}

func (s *Server) apiTableCSV(c *gin.Context) {
	st := currentState(c)
	tbl, err := st.Table()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "table_unreadable", err)
		return
	}
	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		RespondError(c, http.StatusInternalServerError, "encode_failed", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bh_ea_table.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// datasetMetadata is written next to the contour report and handed to the
// narrative service by URL.
type datasetMetadata struct {
	Summary    json.RawMessage    `json:"summary"`
	Profile    *analysis.Profile  `json:"profile,omitempty"`
	Thresholds metrics.Thresholds `json:"thresholds"`
	Provenance string             `json:"ert_provenance,omitempty"`
	Contours   *contour.Stats     `json:"contours,omitempty"`
}

// ReportResponse is the body of POST /api/report.
type ReportResponse struct {
	ReportURL   string                    `json:"report_url,omitempty"`
	MetadataURL string                    `json:"metadata_url,omitempty"`
	Contours    *contour.Stats            `json:"contours,omitempty"`
	Narrative   *narrative.Interpretation `json:"narrative,omitempty"`
	Advisories  []string                  `json:"advisories"`
}

// apiReport builds the contour report, the dataset metadata and, when
// configured, the narrative. Partial failures become advisories.
func (s *Server) apiReport(c *gin.Context) {
	st := currentState(c)
	ctx := c.Request.Context()
	dir := st.Dir(s.uploadDir)
	if err := utils.EnsureDir(dir); err != nil {
		RespondError(c, http.StatusInternalServerError, "storage_unavailable", err)
		return
	}

	bundle, adv := s.aggregate(st)
	resp := ReportResponse{Advisories: adv}

	// A report from an earlier run must not stand in for this one.
	st.ReportImage = ""
	if src := s.reportSource(st); src == "" {
		resp.Advisories = append(resp.Advisories, "No ERT image available for the contour report.")
	} else if rep, err := contour.Annotate(src, filepath.Join(dir, reportImageName), s.contourOpt); err != nil {
		s.log.Warn("contour report failed", "error", err)
		resp.Advisories = append(resp.Advisories, "Contour report failed: "+err.Error())
	} else {
		st.ReportImage = filepath.Base(rep.ImagePath)
		resp.Contours = &rep.Stats
	}

	meta := datasetMetadata{
		Summary:    bundle.Summary(),
		Profile:    s.profile(st),
		Thresholds: st.Thresholds,
		Provenance: st.ProcessedProvenance,
		Contours:   resp.Contours,
	}
	metaPath := filepath.Join(dir, datasetMetadataName)
	if b, err := utils.PrettyJSON(meta); err != nil {
		resp.Advisories = append(resp.Advisories, "Dataset metadata failed: "+err.Error())
	} else if err := utils.SafeWriteFile(metaPath, b); err != nil {
		resp.Advisories = append(resp.Advisories, "Dataset metadata failed: "+err.Error())
	} else {
		st.ReportMetadata = datasetMetadataName
	}

	if st.ReportImage != "" {
		resp.ReportURL = s.publish(c, st, filepath.Join(dir, st.ReportImage), &resp.Advisories)
	}
	if st.ReportMetadata != "" {
		resp.MetadataURL = s.publish(c, st, metaPath, &resp.Advisories)
	}

	interp, err := s.narrator.Request(ctx, narrative.Bundle{
		MetadataURL:    resp.MetadataURL,
		ReportURL:      resp.ReportURL,
		DatasetSummary: string(bundle.Summary()),
		Provenance:     st.ProcessedProvenance,
	})
	switch {
	case errors.Is(err, narrative.ErrNotConfigured):
		resp.Advisories = append(resp.Advisories, "AI narrative is not configured.")
	case err != nil:
		resp.Advisories = append(resp.Advisories, "AI narrative unavailable: "+err.Error())
	default:
		st.Narrative = interp
		resp.Narrative = interp
	}

	if err := s.persist(c, st); err != nil {
		resp.Advisories = append(resp.Advisories, "Session could not be saved; the report may not appear on reload.")
	}
	RespondOK(c, resp)
}

func (s *Server) profile(st *session.State) *analysis.Profile {
	tbl, err := st.Table()
	if err != nil {
		return nil
	}
	return analysis.Describe(tbl, analysis.DefaultOptions())
}

// reportSource prefers the processed ERT render, then the uploaded preview.
func (s *Server) reportSource(st *session.State) string {
	for _, name := range []string{st.ProcessedImage, st.UploadedImage} {
		if name == "" {
			continue
		}
		p := filepath.Join(st.Dir(s.uploadDir), name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// publish uploads an artifact and falls back to the session-local URL.
func (s *Server) publish(c *gin.Context, st *session.State, path string, adv *[]string) string {
	local := s.cfg.Server.PublicBaseURL + "/uploads/" + filepath.Base(path)
	url, err := s.publisher.Publish(c.Request.Context(), path, storage.Key(st.Token, path))
	if err != nil {
		s.log.Warn("artifact publish failed", "backend", s.publisher.Name(), "error", err)
		*adv = append(*adv, "Artifact publishing failed; using the dashboard link instead.")
		return local
	}
	return url
}
