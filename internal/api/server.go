// Package api implements the HTTP/JSON surface: it maps verbs and
// paths onto engine.Engine operations and renders typed errors as the
// stable {error, code, error_code} body.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sabaini/grns/internal/config"
	"github.com/sabaini/grns/internal/engine"
)

// Server binds one project's Engine to the HTTP surface described by
// §4.7: a per-project scope at /v1/projects/<prefix>/... and a
// compatibility alias at /v1/... .
type Server struct {
	eng     *engine.Engine
	logger  *logrus.Logger
	prefix  string
	limiter *rate.Limiter
	http    *http.Server
}

// New builds a Server; call Start to begin listening.
func New(eng *engine.Engine, cfg *config.Config, logger *logrus.Logger) *Server {
	s := &Server{
		eng:     eng,
		logger:  logger,
		prefix:  cfg.Project.Prefix,
		limiter: rate.NewLimiter(rate.Limit(cfg.API.WriteRatePerSec), cfg.API.WriteBurst),
	}
	s.http = &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: s.router(),
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequest)

	r.Get("/health", s.handleHealth)

	mount := func(r chi.Router) {
		r.Get("/tasks", s.handleList)
		r.Post("/tasks", s.withWriteLimit(s.handleCreate))
		r.Get("/tasks/ready", s.handleReady)
		r.Get("/tasks/stale", s.handleStale)
		r.Get("/tasks/search", s.handleSearch)
		r.Post("/tasks/close", s.withWriteLimit(s.handleClose))
		r.Post("/tasks/reopen", s.withWriteLimit(s.handleReopen))
		r.Get("/tasks/{id}", s.handleGet)
		r.Patch("/tasks/{id}", s.withWriteLimit(s.handleUpdate))
		r.Delete("/tasks/{id}", s.withWriteLimit(s.handleDelete))
		r.Post("/tasks/{id}/labels", s.withWriteLimit(s.handleAddLabels))
		r.Delete("/tasks/{id}/labels", s.withWriteLimit(s.handleRemoveLabels))
		r.Post("/tasks/{id}/deps", s.withWriteLimit(s.handleAddDep))
		r.Delete("/tasks/{id}/deps/{parentId}", s.withWriteLimit(s.handleRemoveDep))
		r.Post("/tasks/{id}/git-refs", s.withWriteLimit(s.handleAddGitRef))
		r.Get("/tasks/{id}/git-refs", s.handleListGitRefs)
		r.Get("/git-refs/{refId}", s.handleGetGitRef)
		r.Delete("/git-refs/{refId}", s.withWriteLimit(s.handleDeleteGitRef))
	}

	r.Route("/v1", mount)
	r.Route("/v1/projects/{prefix}", func(r chi.Router) {
		r.Use(s.requireProject)
		mount(r)
	})

	return r
}

// requireProject rejects requests whose {prefix} path segment doesn't
// match this server's configured project, since one Server instance
// is bound to exactly one project's store.
func (s *Server) requireProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "prefix") != s.prefix {
			writeError(w, errNotFoundProject(chi.URLParam(r, "prefix")))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withWriteLimit gates mutating handlers behind the write-lane
// admission limiter, honoring request cancellation while waiting.
func (s *Server) withWriteLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.limiter.Wait(r.Context()); err != nil {
			writeError(w, errRequestCanceled(err))
			return
		}
		next(w, r)
	}
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("handled request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Start begins serving and blocks until the listener fails.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.http.Addr).Info("grnsd listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the given deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
