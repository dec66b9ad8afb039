// Package server provides the HTTP API for lexrag.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/lexrag/internal/config"
	"github.com/hyperjump/lexrag/internal/index"
	"github.com/hyperjump/lexrag/internal/metrics"
	"github.com/hyperjump/lexrag/internal/models"
	"github.com/hyperjump/lexrag/internal/rag"
)

// RequestTimeout bounds every request, streamed answers included.
const RequestTimeout = 120 * time.Second

// Answerer answers questions. *rag.Service implements it.
type Answerer interface {
	Answer(ctx context.Context, question string) *models.Answer
	AnswerStream(ctx context.Context, question string) *rag.StreamingAnswer
}

// IndexHolder exposes the served index. *index.Holder implements it.
type IndexHolder interface {
	Current() *index.Index
	Reload() (*index.Index, error)
}

// Server is the HTTP server for the lexrag API.
type Server struct {
	answerer Answerer
	holder   IndexHolder
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(answerer Answerer, holder IndexHolder, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		answerer: answerer,
		holder:   holder,
		config:   cfg,
		logger:   logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(middleware.Timeout(RequestTimeout))

	r.Post("/api/v1/answer", s.handleAnswer)
	r.Post("/api/v1/answer/stream", s.handleAnswerStream)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/index/reload", s.handleReload)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start listens on the configured address and serves until Stop. A graceful
// shutdown returns nil.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Stop. A graceful shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting server", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
