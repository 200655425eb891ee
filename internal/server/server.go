// Package server provides the HTTP API for Gazou.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/config"
	"github.com/hyperjump/gazou/internal/search"
	"github.com/hyperjump/gazou/internal/storage"
)

// WatchService manages watched directories. The server uses it for the watch endpoints.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the Gazou API.
type Server struct {
	engine     *search.Engine
	catalog    storage.Catalog
	cfg        *config.Config
	configPath string
	watch      WatchService
	cfgMu      sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server. catalog and watch may be nil; the endpoints that need them then
// answer 501. When configPath is set, watch directory changes are saved back to it.
func NewServer(
	engine *search.Engine,
	catalog storage.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		catalog:    catalog,
		cfg:        cfg,
		configPath: configPath,
		watch:      watch,
		logger:     logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/index", s.handleIndex)
		r.Get("/status", s.handleStatus)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
