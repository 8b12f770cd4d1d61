// Package server provides the HTTP API for ingestion events, questions and the run ledger.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/nuevorag/internal/config"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/storage"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

// readTimeout bounds ledger and status reads. Ingest and query routes run unbounded
// so the object store, Bedrock and vector store clients apply their own timeouts.
const readTimeout = 30 * time.Second

// Service runs the ingest and query flows.
type Service interface {
	HandleEvent(ctx context.Context, event *models.ObjectEvent) *models.BatchResult
	Ingest(ctx context.Context, bucket, key string) *models.IngestResult
	Query(ctx context.Context, req models.QueryRequest) *models.QueryResult
}

// WatchInfo describes the local uploads watcher, when one is running.
type WatchInfo interface {
	Dir() string
	Bucket() string
}

// Server is the HTTP server for the nuevorag API.
type Server struct {
	service Service
	ledger  storage.RunLedger
	config  *config.Config
	watch   WatchInfo
	logger  *zap.Logger
	server  *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithWatch reports the local watcher in /api/v1/status and makes its bucket the ingest default.
func WithWatch(w WatchInfo) ServerOption {
	return func(s *Server) { s.watch = w }
}

// NewServer creates a server with the given dependencies. A nil ledger disables the ingestion endpoints' history.
func NewServer(service Service, ledger storage.RunLedger, cfg *config.Config, logger *zap.Logger, opts ...ServerOption) *Server {
	if ledger == nil {
		ledger = storage.NopLedger{}
	}
	s := &Server{
		service: service,
		ledger:  ledger,
		config:  cfg,
		logger:  utils.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.handleEvents)
		r.Post("/documents/ingest", s.handleIngest)
		r.Post("/query", s.handleQuery)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(readTimeout))
			r.Get("/ingestions", s.handleListIngestions)
			r.Get("/ingestions/{id}", s.handleGetIngestion)
			r.Get("/status", s.handleStatus)
		})
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
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
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}
