package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
	"github.com/yangatekane/bh-ea-dashboard/internal/survey"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

// pageData feeds templates/dashboard.html.
type pageData struct {
	Metrics    *metrics.Bundle
	ChartsJSON template.JS
	Advisories []string
	Thresholds metrics.Thresholds

	ProcessedImageURL   string
	ProcessedModelURL   string
	ProcessedProvenance string
	UploadedImageURL    string
	ReportImageURL      string
	ReportMetadataURL   string
	Narrative           *narrative.Interpretation
	NarrativeEnabled    bool
}

func (s *Server) dashboard(c *gin.Context) {
	s.render(c, currentState(c), nil)
}

// aggregate computes metrics for the session, reporting an unreadable stored
// table as an advisory over the demo data.
func (s *Server) aggregate(st *session.State) (*metrics.Bundle, []string) {
	var adv []string
	tbl, err := st.Table()
	if err != nil {
		s.log.Warn("stored table unreadable", "error", err)
		adv = append(adv, "Stored survey data could not be read; showing demo data.")
		tbl = survey.Demo()
	}
	b := metrics.Aggregate(tbl, st.Thresholds)
	return b, append(adv, b.Advisories...)
}

func (s *Server) render(c *gin.Context, st *session.State, advisories []string) {
	bundle, adv := s.aggregate(st)
	charts, err := json.Marshal(bundle.Charts)
	if err != nil {
		charts = []byte(`{}`)
	}
	v := st.UpdatedAt.Unix()
	c.HTML(http.StatusOK, "dashboard.html", pageData{
		Metrics:             bundle,
		ChartsJSON:          template.JS(charts),
		Advisories:          append(advisories, adv...),
		Thresholds:          st.Thresholds,
		ProcessedImageURL:   artifactURL(st.ProcessedImage, v),
		ProcessedModelURL:   artifactURL(st.ProcessedModel, v),
		ProcessedProvenance: st.ProcessedProvenance,
		UploadedImageURL:    artifactURL(st.UploadedImage, v),
		ReportImageURL:      artifactURL(st.ReportImage, v),
		ReportMetadataURL:   artifactURL(st.ReportMetadata, v),
		Narrative:           st.Narrative,
		NarrativeEnabled:    s.narrator != nil,
	})
}

func artifactURL(name string, version int64) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("/uploads/%s?v=%d", name, version)
}

// upload handles the multipart dashboard form. Each part is optional and
// processed independently; a failed part leaves earlier state in place.
func (s *Server) upload(c *gin.Context) {
	st := currentState(c)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Errorf("upload exceeds %d MB", s.maxUpload>>20))
			return
		}
		RespondError(c, http.StatusBadRequest, "bad_form", err)
		return
	}

	var adv []string
	if st.Thresholds.ApplyForm(c.PostForm) {
		adv = append(adv, "Thresholds updated.")
	}
	if fh, err := c.FormFile("file"); err == nil && fh.Filename != "" {
		adv = append(adv, s.acceptSurvey(c, st, fh))
	}
	if fh, err := c.FormFile("ert_data"); err == nil && fh.Filename != "" {
		adv = append(adv, s.acceptSounding(c, st, fh)...)
	}
	if fh, err := c.FormFile("ert_image"); err == nil && fh.Filename != "" {
		adv = append(adv, s.acceptPreview(c, st, fh))
	}
	if err := s.persist(c, st); err != nil {
		adv = append(adv, "Session could not be saved; changes may be lost on reload.")
	}
	s.render(c, st, adv)
}

// saveUpload stores an uploaded part in the session directory under a
// prefixed, sanitized name so it cannot clobber generated artifacts.
func (s *Server) saveUpload(c *gin.Context, st *session.State, fh *multipart.FileHeader, prefix string) (string, error) {
	name := utils.SanitizeFilename(fh.Filename)
	if name == "" {
		return "", errors.New("invalid file name")
	}
	dir := st.Dir(s.uploadDir)
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, prefix+name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return dst, nil
}

func (s *Server) acceptSurvey(c *gin.Context, st *session.State, fh *multipart.FileHeader) string {
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".csv", ".txt", ".xlsx":
	default:
		return fmt.Sprintf("CSV error: unsupported file type %q", filepath.Ext(fh.Filename))
	}
	path, err := s.saveUpload(c, st, fh, "survey_")
	if err != nil {
		return "CSV error: " + err.Error()
	}
	tbl, err := survey.Normalize(path)
	if err != nil {
		s.log.Warn("survey upload rejected", "file", fh.Filename, "error", err)
		return "CSV error: " + err.Error()
	}
	if err := st.SetTable(tbl); err != nil {
		return "CSV error: " + err.Error()
	}
	return fmt.Sprintf("Loaded and processed %d records from %s", tbl.Len(), fh.Filename)
}

func (s *Server) acceptSounding(c *gin.Context, st *session.State, fh *multipart.FileHeader) []string {
	path, err := s.saveUpload(c, st, fh, "sounding_")
	if err != nil {
		return []string{"ERT processing failed: " + err.Error()}
	}
	art, ok := ert.Process(c.Request.Context(), s.ert, path, st.Dir(s.uploadDir))
	if !ok {
		return []string{"ERT processing failed."}
	}
	st.ProcessedImage = filepath.Base(art.ImagePath)
	st.ProcessedModel = filepath.Base(art.ModelPath)
	st.ProcessedMetadata = filepath.Base(art.MetadataPath)
	st.ProcessedProvenance = string(art.Provenance)
	out := []string{"ERT data processed: " + fh.Filename}
	if art.Provenance == ert.ProvenanceSynthetic {
		out = append(out, "ERT input could not be inverted; the section shown is synthetic, not measured.")
	}
	return out
}

func (s *Server) acceptPreview(c *gin.Context, st *session.State, fh *multipart.FileHeader) string {
	path, err := s.saveUpload(c, st, fh, "image_")
	if err != nil {
		return "ERT-I image upload failed: " + err.Error()
	}
	st.UploadedImage = filepath.Base(path)
	return "ERT-I image uploaded: " + fh.Filename
}

func (s *Server) updateThresholds(c *gin.Context) {
	st := currentState(c)
	changed := st.Thresholds.ApplyForm(c.PostForm)
	if changed {
		if err := s.persist(c, st); err != nil {
			RespondError(c, http.StatusServiceUnavailable, "session_unavailable", err)
			return
		}
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		bundle, _ := s.aggregate(st)
		RespondOK(c, bundle)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// serveArtifact returns a file from the caller's own session directory.
func (s *Server) serveArtifact(c *gin.Context) {
	st := currentState(c)
	path, err := utils.ResolveWithin(st.Dir(s.uploadDir), c.Param("filename"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_path", err)
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		RespondError(c, http.StatusNotFound, "not_found", errors.New("artifact not found"))
		return
	}
	c.File(path)
}
