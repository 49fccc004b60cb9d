// Package server exposes the workflow over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ProSocialFlow/internal/config"
	"ProSocialFlow/internal/logging"
	"ProSocialFlow/internal/usecase"
)

// Deps are the use cases served by the router.
type Deps struct {
	Actions  *usecase.Actions
	Sessions *usecase.SessionManager
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server owns the router and the HTTP listener.
type Server struct {
	cfg      config.ServerConfig
	actions  *usecase.Actions
	sessions *usecase.SessionManager
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// New builds a server; call Handler for the router or Run to listen.
func New(cfg config.ServerConfig, deps Deps) *Server {
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		cfg:      cfg,
		actions:  deps.Actions,
		sessions: deps.Sessions,
		gatherer: gatherer,
		logger:   logging.OrDiscard(deps.Logger),
	}
}

// Handler configures all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.listCategories)

		r.Route("/actions", func(r chi.Router) {
			r.Post("/ideas", s.generateIdeas)
			r.Post("/posts", s.generatePosts)
			r.Post("/image", s.generateImage)
			r.Get("/history", s.fetchHistory)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Post("/ideas", s.sessionIdeas)
				r.Post("/ideas/{category}", s.sessionIdeas)
				r.Put("/locks/{category}", s.setLock)
				r.Post("/posts", s.sessionPosts)
				r.Patch("/posts/{postID}", s.updatePost)
				r.Delete("/posts/{postID}", s.deletePost)
				r.Post("/posts/{postID}/publish", s.publishPost)
				r.Post("/image", s.sessionImage)
				r.Post("/history", s.sessionHistory)
			})
		})
	})

	return r
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
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

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
