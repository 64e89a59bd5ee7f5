package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/yomu/internal/config"
	"github.com/hyperjump/yomu/internal/extract"
	"github.com/hyperjump/yomu/internal/ingest"
	"github.com/hyperjump/yomu/internal/models"
	"github.com/hyperjump/yomu/internal/reqctx"
	"github.com/hyperjump/yomu/internal/storage"
	"github.com/hyperjump/yomu/internal/vectorstore"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	multipartMemory  = 32 << 20

	defaultMaxUploadMB = 50
)

// errorTitles maps an error kind to its status and title. KindInternal titles depend on the route.
var errorTitles = map[models.Kind]struct {
	status int
	title  string
}{
	models.KindValidation:        {http.StatusBadRequest, "Invalid Request"},
	models.KindUnsupportedFormat: {http.StatusUnsupportedMediaType, "Unsupported Format"},
	models.KindExtraction:        {http.StatusUnprocessableEntity, "Extraction Failure"},
	models.KindEmbedding:         {http.StatusBadGateway, "Embedding Failure"},
	models.KindStore:             {http.StatusServiceUnavailable, "Store Failure"},
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxMB := s.config.Ingest.MaxUploadMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMB<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(w, r, models.Invalid("file", "upload exceeds "+strconv.FormatInt(maxMB, 10)+" MB"), "Ingestion Fault")
			return
		}
		s.fail(w, r, models.Invalid("file", "expected multipart form with a file field"), "Ingestion Fault")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, models.Invalid("file", "no file uploaded"), "Ingestion Fault")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, models.Invalid("file", "could not read upload"), "Ingestion Fault")
		return
	}
	mode, err := ingest.ParseMode(r.FormValue("mode"))
	if err != nil {
		s.fail(w, r, err, "Ingestion Fault")
		return
	}

	reqctx.Logger(r.Context(), s.logger).Debug("ingest request",
		zap.String("filename", header.Filename),
		zap.Int("size", len(content)),
		zap.String("mode", string(mode)))
	res, err := s.ingester.Ingest(r.Context(), extract.File{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Content:  content,
	}, mode)
	if err != nil {
		s.fail(w, r, err, "Ingestion Fault")
		return
	}
	s.respondJSON(w, http.StatusOK, res.Response())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.fail(w, r, models.Invalid("body", "invalid request body"), "Search Fault")
		return
	}
	start := time.Now()
	results, err := s.searcher.Search(r.Context(), query.Query, vectorstore.SearchOptions{
		Limit:     query.Limit,
		Threshold: query.Threshold,
	})
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	if results == nil {
		results = []*models.SearchResult{}
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Query:     query.Query,
		Results:   results,
		Total:     len(results),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var q models.ContextQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.fail(w, r, models.Invalid("body", "invalid request body"), "Search Fault")
		return
	}
	out, err := s.retriever.RelevantContext(r.Context(), q.Query, q.Content, q.SourceName)
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rows, err := s.searcher.Count(ctx)
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	resp := map[string]any{
		"backend":              s.searcher.Backend().Name(),
		"rows":                 rows,
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
	}
	if s.catalog != nil {
		docs, err := s.catalog.CountDocuments(ctx)
		if err != nil {
			s.fail(w, r, err, "Search Fault")
			return
		}
		resp["documents"] = docs
	}
	if bytes, err := storage.DiskUsageBytes(s.config.Storage.DataDir); err == nil {
		resp["disk_usage_bytes"] = bytes
	} else {
		reqctx.Logger(ctx, s.logger).Warn("status: disk usage failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "Not Implemented", "document catalog not enabled")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	docs, err := s.catalog.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	total, err := s.catalog.CountDocuments(r.Context())
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "Not Implemented", "document catalog not enabled")
		return
	}
	id := chi.URLParam(r, "id")
	doc, err := s.catalog.GetDocument(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "Not Found", "document not found: "+id)
		return
	}
	if err != nil {
		s.fail(w, r, err, "Search Fault")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

// queryInt parses a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, models.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "Not Implemented", "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "Not Implemented", "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, models.Invalid("body", "invalid request body"), "Ingestion Fault")
		return
	}
	if req.Path == "" {
		s.fail(w, r, models.Invalid("path", "is required"), "Ingestion Fault")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.fail(w, r, models.Invalid("path", err.Error()), "Ingestion Fault")
		return
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		s.respondError(w, http.StatusNotFound, "Not Found", "directory not found: "+abs)
		return
	}
	if err != nil {
		s.fail(w, r, err, "Ingestion Fault")
		return
	}
	if !info.IsDir() {
		s.fail(w, r, models.Invalid("path", "is not a directory"), "Ingestion Fault")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.fail(w, r, err, "Ingestion Fault")
		return
	}
	s.saveWatchDirectories(r)
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "Not Implemented", "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.fail(w, r, models.Invalid("path", "is required (query or body)"), "Ingestion Fault")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.fail(w, r, models.Invalid("path", err.Error()), "Ingestion Fault")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, r, err, "Ingestion Fault")
		return
	}
	s.saveWatchDirectories(r)
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// saveWatchDirectories writes the current watch list back to the config file.
func (s *Server) saveWatchDirectories(r *http.Request) {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		reqctx.Logger(r.Context(), s.logger).Warn("failed to persist watch config", zap.Error(err))
	}
}

// fail writes err as an error response. fallback titles errors of no known kind.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := models.KindOf(err)
	status, title := http.StatusInternalServerError, fallback
	if t, ok := errorTitles[kind]; ok {
		status, title = t.status, t.title
	}
	log := reqctx.Logger(r.Context(), s.logger).With(
		zap.String("path", r.URL.Path),
		zap.String("kind", string(kind)),
		zap.Error(err))
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Info("request rejected")
	}
	s.respondError(w, status, title, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, title, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: title, Message: message})
}
