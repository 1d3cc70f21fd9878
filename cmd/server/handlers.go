package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/talentbase/hrgraph"
)

type handler struct {
	engine hrgraph.Engine
}

func newHandler(e hrgraph.Engine) *handler {
	return &handler{engine: e}
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			if err := h.engine.Ingest(ctx, tmpPath); err != nil {
				writeIngestError(w, err)
				slog.Error("ingest error", "file", safeName, "error", err)
				return
			}

			writeJSON(w, http.StatusOK, map[string]any{
				"status":   "ingested",
				"filename": safeName,
			})
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path  string `json:"path"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []hrgraph.IngestOption
	if req.Force {
		opts = append(opts, hrgraph.WithForce())
	}

	if err := h.engine.Ingest(ctx, absPath, opts...); err != nil {
		writeIngestError(w, err)
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ingested",
		"path":   absPath,
	})
}

// POST /ingest-dir
func (h *handler) handleIngestDir(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
	defer cancel()

	var req struct {
		Dir   string `json:"dir"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	info, err := os.Stat(req.Dir)
	if err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "dir must be an existing directory")
		return
	}

	var opts []hrgraph.IngestOption
	if req.Force {
		opts = append(opts, hrgraph.WithForce())
	}

	result, err := h.engine.IngestDir(ctx, req.Dir, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch ingestion failed")
		slog.Error("ingest-dir error", "dir", req.Dir, "error", err)
		return
	}

	failures := make(map[string]string, len(result.Errors))
	for path, ferr := range result.Errors {
		failures[path] = ferr.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    result.RunID,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"failures":  failures,
	})
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
		Mode     string `json:"mode,omitempty"` // vector or hybrid
		TopK     int    `json:"top_k,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	// Bound parameters.
	if req.TopK < 0 || req.TopK > 100 {
		req.TopK = 0 // use default
	}

	var opts []hrgraph.AskOption
	if req.Mode != "" {
		opts = append(opts, hrgraph.WithMode(hrgraph.Mode(req.Mode)))
	}
	if req.TopK > 0 {
		opts = append(opts, hrgraph.WithTopK(req.TopK))
	}

	answer, err := h.engine.Ask(ctx, req.Question, opts...)
	if err != nil {
		if errors.Is(err, hrgraph.ErrNoResults) {
			writeError(w, http.StatusNotFound, "no matching candidates found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "question", req.Question, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// POST /init-indexes
func (h *handler) handleInitIndexes(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InitIndexes(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "index creation failed")
		slog.Error("init-indexes error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hrgraph.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document format")
	case errors.Is(err, hrgraph.ErrParsingFailed):
		writeError(w, http.StatusUnprocessableEntity, "document could not be parsed")
	default:
		writeError(w, http.StatusInternalServerError, "ingestion failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
