package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/config"
	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
	"github.com/hyperjump/gazou/internal/search"
	"github.com/hyperjump/gazou/internal/storage"
	"github.com/hyperjump/gazou/internal/vector"
)

const defaultRunsLimit = 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("top_k", query.TopK))
	response, err := s.engine.Query(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type indexRequest struct {
	Path string `json:"path"`
}

// handleIndex appends every supported file under a directory to the bound index and saves it.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, ok := s.directory(w, req.Path)
	if !ok {
		return
	}
	items, err := indexer.CollectItems(abs, s.cfg.Indexing.ImageExtensions, s.cfg.Indexing.TextExtensions)
	if err != nil {
		s.fail(w, "collect items failed", err)
		return
	}
	s.logger.Debug("index request", zap.String("path", abs), zap.Int("items", len(items)))

	report, err := s.engine.Append(r.Context(), items)
	if err != nil {
		s.fail(w, "append failed", err)
		return
	}
	if s.cfg.Storage.IndexDir != "" {
		if err := s.engine.SaveIndex(s.cfg.Storage.IndexDir); err != nil {
			s.fail(w, "save index failed", err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"indexed":   s.engine.Indexed(),
		"index_dir": s.cfg.Storage.IndexDir,
	}
	if stats, err := s.engine.Stats(); err == nil {
		resp["stats"] = stats
	}
	if diskBytes, err := storage.DiskUsageBytes(s.cfg.Storage.IndexDir, s.cfg.Storage.CatalogPath); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	} else {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	}
	if s.catalog != nil {
		runs, err := s.catalog.CountRuns(r.Context())
		if err != nil {
			s.fail(w, "status: count runs failed", err)
			return
		}
		resp["runs"] = runs
	}
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	resp["config"] = map[string]interface{}{
		"embedding_dimensions": s.cfg.Embedding.Dimensions,
		"batch_size":           s.cfg.Indexing.BatchSize,
		"default_top_k":        s.cfg.Search.DefaultTopK,
		"max_top_k":            s.cfg.Search.MaxTopK,
		"catalog_path":         s.cfg.Storage.CatalogPath,
		"extensions":           s.cfg.Indexing.Extensions(),
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "run catalog not enabled")
		return
	}
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.catalog.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, "list runs failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "run catalog not enabled")
		return
	}
	run, err := s.catalog.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get run failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, _ *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, ok := s.directory(w, req.Path)
	if !ok {
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.fail(w, "watch add directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, "watch remove directory failed", err)
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// directory resolves path to an absolute directory, answering the request itself on failure.
func (s *Server) directory(w http.ResponseWriter, path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return "", false
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return "", false
	}
	return abs, true
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrNotIndexed):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidQuery),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, vector.ErrLengthMismatch):
		return http.StatusBadRequest
	case errors.Is(err, vector.ErrNotFound), errors.Is(err, storage.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
