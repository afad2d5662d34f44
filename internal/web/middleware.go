package web

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yangatekane/bh-ea-dashboard/internal/logger"
	"github.com/yangatekane/bh-ea-dashboard/internal/session"
)

const (
	sessionCookie = "bhea_session"
	ctxSession    = "bhea.session"
	ctxFresh      = "bhea.session.fresh"
)

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if st, ok := c.Get(ctxSession); ok {
			fields = append(fields, "session_id", st.(*session.State).Token[:8])
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error("panic in handler", "path", c.Request.URL.Path, "panic", rec)
		RespondError(c, http.StatusInternalServerError, "internal", errors.New("internal server error"))
	})
}

// corsFor allows the configured origins. With none configured the dashboard
// is same-origin only and no CORS headers are emitted.
func corsFor(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func bodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// sessionMiddleware resolves the browser's state, creating a fresh one for
// new or expired cookies. Requests of one browser are serialized.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(sessionCookie)
		if err != nil || !session.ValidToken(token) {
			token = session.NewToken()
		}
		unlock := s.locks.lock(token)
		defer unlock()

		ctx := c.Request.Context()
		fresh := false
		st, err := s.store.Load(ctx, token)
		if errors.Is(err, session.ErrNotFound) {
			st, err = session.Fresh(token, s.defaults)
			fresh = true
		}
		if err != nil {
			s.log.Error("session load failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "session_unavailable", errors.New("session storage unavailable"))
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, token, s.cookieMaxAge, "/", "", false, true)
		c.Set(ctxSession, st)
		c.Set(ctxFresh, fresh)
		c.Next()

		if c.GetBool(ctxFresh) {
			if err := s.store.Save(ctx, st); err != nil {
				s.log.Warn("session save failed", "error", err)
			}
		}
	}
}

func currentState(c *gin.Context) *session.State {
	return c.MustGet(ctxSession).(*session.State)
}

// keyedMutex hands out one mutex per key and forgets it when unused.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.m == nil {
		k.m = map[string]*lockEntry{}
	}
	e := k.m[key]
	if e == nil {
		e = &lockEntry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.Lock()
	return func() {
		e.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
