// Package web serves the dashboard and its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangatekane/bh-ea-dashboard/internal/config"
	"github.com/yangatekane/bh-ea-dashboard/internal/contour"
	"github.com/yangatekane/bh-ea-dashboard/internal/ert"
	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
	"github.com/yangatekane/bh-ea-dashboard/internal/metrics"
	"github.com/yangatekane/bh-ea-dashboard/internal/narrative"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
	"github.com/yangatekane/bh-ea-dashboard/internal/storage"
	"github.com/yangatekane/bh-ea-dashboard/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators a Server needs. Narrator may be nil.
type Deps struct {
	Config    *config.Global
	Store     session.Store
	ERT       ert.RasterProcessor
	Narrator  *narrative.Requestor
	Publisher storage.Publisher
	Log       *logger.Logger
}

type Server struct {
	cfg          *config.Global
	store        session.Store
	ert          ert.RasterProcessor
	narrator     *narrative.Requestor
	publisher    storage.Publisher
	log          *logger.Logger
	defaults     metrics.Thresholds
	contourOpt   contour.Options
	uploadDir    string
	maxUpload    int64
	cookieMaxAge int
	locks        keyedMutex
}

// New validates deps and prepares the upload root.
func New(d Deps) (*Server, error) {
	if d.Config == nil || d.Store == nil || d.ERT == nil {
		return nil, errors.New("web: config, session store and ERT processor are required")
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Publisher == nil {
		d.Publisher = &storage.LocalPublisher{BaseURL: d.Config.Server.PublicBaseURL}
	}
	if err := utils.EnsureDir(d.Config.Server.UploadDir); err != nil {
		return nil, err
	}
	maxMB := d.Config.Server.MaxUploadMB
	if maxMB <= 0 {
		maxMB = 50
	}
	ttl := d.Config.Session.TTLHours
	if ttl <= 0 {
		ttl = 72
	}
	return &Server{
		cfg:          d.Config,
		store:        d.Store,
		ert:          d.ERT,
		narrator:     d.Narrator,
		publisher:    d.Publisher,
		log:          d.Log,
		defaults:     metrics.FromConfig(d.Config.Thresholds),
		contourOpt:   contour.DefaultOptions(),
		uploadDir:    d.Config.Server.UploadDir,
		maxUpload:    int64(maxMB) << 20,
		cookieMaxAge: ttl * 3600,
	}, nil
}

// Router wires middleware and routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.log), requestLogger(s.log), corsFor(s.cfg.Server.CORSOrigins))
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", s.healthz)
	r.GET("/status", s.status)

	g := r.Group("/", bodyLimit(s.maxUpload), s.sessionMiddleware())
	{
		g.GET("/", s.dashboard)
		g.POST("/", s.upload)
		g.POST("/thresholds", s.updateThresholds)
		g.GET("/uploads/:filename", s.serveArtifact)
		g.GET("/api/metrics", s.apiMetrics)
		g.GET("/api/table.csv", s.apiTableCSV)
		g.POST("/api/report", s.apiReport)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", "addr", s.cfg.Server.Addr, "upload_dir", s.uploadDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// PruneExpired removes expired sessions and their artifact directories when
// the store supports it.
func (s *Server) PruneExpired(ctx context.Context) (int, error) {
	p, ok := s.store.(interface {
		Prune(context.Context) ([]string, error)
	})
	if !ok {
		return 0, nil
	}
	tokens, err := p.Prune(ctx)
	if err != nil {
		return 0, err
	}
	for _, tok := range tokens {
		if !session.ValidToken(tok) {
			continue
		}
		st := session.State{Token: tok}
		if err := os.RemoveAll(st.Dir(s.uploadDir)); err != nil {
			s.log.Warn("remove session dir failed", "error", err)
		}
	}
	return len(tokens), nil
}

func (s *Server) healthz(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	RespondOK(c, gin.H{"time": time.Now().UTC().Format(time.RFC3339), "running": true})
}

// persist saves the state and clears the fresh flag so the middleware does
// not save it twice.
func (s *Server) persist(c *gin.Context, st *session.State) error {
	c.Set(ctxFresh, false)
	if err := s.store.Save(c.Request.Context(), st); err != nil {
		s.log.Warn("session save failed", "error", err)
		return err
	}
	return nil
}
