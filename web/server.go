// Package web serves the question answering engine over HTTP: a small chat
// page and a JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/brunobiangulo/goknow"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageTitle       = "goknow - Trợ lý tri thức tự học"
	askTimeout      = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
	maxBodyBytes    = 1 << 20
)

// Server is the HTTP front end of an engine.
type Server struct {
	engine goknow.Engine
	cfg    goknow.ServerConfig
	logger *zap.Logger
	page   *template.Template
	router chi.Router
}

// NewServer builds the router for engine.
func NewServer(engine goknow.Engine, cfg goknow.ServerConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parsing page template: %w", err)
	}
	s := &Server{engine: engine, cfg: cfg, logger: logger, page: page}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger, s.engine.Metrics()))
	r.Use(recoverer(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.APIKey))
		r.Handle("/metrics", s.engine.Metrics().Handler())
		r.Route("/api", func(r chi.Router) {
			r.Post("/query", s.handleQuery)
			r.Get("/history", s.handleHistory)
			r.Get("/similar", s.handleSimilar)
			r.Get("/stats", s.handleStats)
		})
	})
	return r
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	readTimeout := s.cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
