// Package server provides the HTTP API for tsrag.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/config"
	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/ingest"
	"github.com/hyperjump/tsrag/internal/search"
	"github.com/hyperjump/tsrag/internal/snapshot"
	"github.com/hyperjump/tsrag/pkg/utils"
)

// maxUploadBytes bounds request bodies: JSON documents and queries, multipart uploads and remote writes.
const maxUploadBytes = 32 << 20

// Server is the HTTP server for the tsrag API.
type Server struct {
	engine    *search.Engine
	extractor *extract.Extractor
	remote    *ingest.RemoteWriter
	snapshots *snapshot.Manager
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithSnapshots enables POST /api/v1/snapshot.
func WithSnapshots(m *snapshot.Manager) Option {
	return func(s *Server) { s.snapshots = m }
}

// WithExtractor replaces the default file extractor used by uploads.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Server) { s.extractor = e }
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Server{
		engine:    engine,
		extractor: extract.NewExtractor(),
		config:    cfg,
		logger:    utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.remote = ingest.NewRemoteWriter(engine, s.logger)
	return s
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)
		r.Post("/search/upload", s.handleSearchUpload)
		r.Post("/upload", s.handleUpload)
		r.Post("/prom/write", s.handleRemoteWrite)
		r.Post("/snapshot", s.handleSnapshot)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleListDocuments)
			r.Post("/", s.handleAddDocument)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
			r.Get("/{id}/analytics", s.handleAnalytics)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
