package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tsrag/internal/extract"
	"github.com/hyperjump/tsrag/internal/models"
	"github.com/hyperjump/tsrag/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add document request", zap.String("id", input.ID), zap.Int("points", len(input.Series)))
	doc, err := s.engine.AddSeries(r.Context(), &input)
	if err != nil {
		s.fail(w, "add document", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         doc.ID,
		"dimensions": len(doc.Embedding),
	})
}

// handleUpload indexes the series in a multipart "file" field. Optional fields:
// "id", "column" and "metadata" (a JSON object).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	series, name, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	metadata := map[string]interface{}{}
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			s.respondError(w, http.StatusBadRequest, "metadata must be a JSON object")
			return
		}
	}
	metadata["file_name"] = name
	if series.Column != "" {
		metadata["column"] = series.Column
	}
	input := &models.DocumentInput{ID: r.FormValue("id"), Series: series.Values, Metadata: metadata}
	doc, err := s.engine.AddSeries(r.Context(), input)
	if err != nil {
		s.fail(w, "upload", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":           doc.ID,
		"dimensions":   len(doc.Embedding),
		"points":       len(series.Values),
		"skipped_rows": series.Skipped,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.search(w, r, &query)
}

// handleSearchUpload searches with the series in a multipart "file" field.
// "k", "include_data", "include_analytics" and "metadata_query" are optional
// form fields.
func (s *Server) handleSearchUpload(w http.ResponseWriter, r *http.Request) {
	series, _, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	query := &models.SearchQuery{
		Series:        series.Values,
		MetadataQuery: r.FormValue("metadata_query"),
	}
	if raw := r.FormValue("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "k must be an integer")
			return
		}
		query.K = k
	}
	query.IncludeData = formBool(r, "include_data")
	query.IncludeAnalytics = formBool(r, "include_analytics")
	s.search(w, r, query)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, query *models.SearchQuery) {
	if limit := s.maxK(); query.K > limit {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("k must not exceed %d", limit))
		return
	}
	s.logger.Debug("search request",
		zap.Int("k", query.K),
		zap.Int("points", len(query.Series)),
		zap.String("metadata_query", query.MetadataQuery))
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	seq, err := s.engine.ListIDs(r.Context())
	if err != nil {
		s.fail(w, "list documents", err)
		return
	}
	ids := []string{}
	for id := range seq {
		ids = append(ids, id)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"ids": ids, "count": len(ids)})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get document", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	removed, err := s.engine.RemoveDocument(r.Context(), id)
	if err != nil {
		s.fail(w, "delete document", err)
		return
	}
	if !removed {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "analytics", err)
		return
	}
	s.respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleRemoteWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	result, err := s.remote.Write(r.Context(), body)
	if err != nil {
		s.fail(w, "remote write", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		s.respondError(w, http.StatusNotImplemented, "snapshots not configured")
		return
	}
	n, err := s.snapshots.Save(r.Context())
	if err != nil {
		s.fail(w, "snapshot", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"location":  s.snapshots.Location(),
		"documents": n,
	})
}

type statusResponse struct {
	Engine         interface{} `json:"engine"`
	Backend        string      `json:"storage_backend"`
	DatabasePath   string      `json:"database_path,omitempty"`
	Snapshot       string      `json:"snapshot,omitempty"`
	DiskUsageBytes *int64      `json:"disk_usage_bytes,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	resp := statusResponse{
		Engine:       stats,
		Backend:      s.config.Storage.Backend,
		DatabasePath: s.config.Storage.DatabasePath,
	}
	if s.snapshots != nil {
		resp.Snapshot = s.snapshots.Location()
	}
	paths := append(storage.SidecarPaths(s.config.Storage.DatabasePath), s.config.Storage.SnapshotPath)
	if n, err := storage.DiskUsageBytes(paths...); err == nil && n > 0 {
		resp.DiskUsageBytes = &n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// readUpload parses a multipart upload and extracts the series in its "file"
// field. It writes the error response itself and reports false on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*extract.Series, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return nil, "", false
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read file")
		return nil, "", false
	}
	extractor := s.extractor
	if col := r.FormValue("column"); col != "" {
		extractor = extract.NewExtractor(extract.WithColumn(col))
	}
	name := filepath.Base(header.Filename)
	series, err := extractor.ExtractBytes(content, strings.ToLower(filepath.Ext(name)))
	if err != nil {
		s.fail(w, "upload", fmt.Errorf("%s: %w", name, err))
		return nil, "", false
	}
	return series, name, true
}

// maxK bounds the result size of one HTTP response.
func (s *Server) maxK() int {
	if s.config.Search.MaxK > 0 {
		return s.config.Search.MaxK
	}
	return models.MaxK
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}

// statusFor maps engine error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrInternalConsistency):
		return http.StatusInternalServerError
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidArgument),
		errors.Is(err, models.ErrInvalidDocument),
		errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
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
