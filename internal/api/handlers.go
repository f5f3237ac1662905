package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Micos01/dir-analysis/internal/events"
	"github.com/Micos01/dir-analysis/internal/ingest"
	"github.com/Micos01/dir-analysis/internal/session"
	"github.com/Micos01/dir-analysis/internal/snapshot"
)

const (
	defaultTopLimit    = 20
	defaultSearchLimit = 100
	maxLimit           = 10000
)

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	deps *Deps
}

type parseRequest struct {
	Path string `json:"path"`
}

type saveListRequest struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines"`
}

func (h *handlers) parseReport(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}
	if req.Path == "" {
		h.fail(w, r, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}

	// A dropped connection must not abort an ingest other callers may share.
	ctx := context.WithoutCancel(r.Context())
	summary, err := h.deps.Index.Parse(ctx, req.Path)
	if err != nil {
		h.publish(events.Event{Type: events.EventError, Status: err.Error()})
		h.fail(w, r, err)
		return
	}
	h.publish(events.Event{Type: events.EventComplete, Count: summary.TotalDirs + summary.TotalFiles, Status: "Complete"})
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Index.Summary()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handlers) directory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := q.Get("sort")
	switch sortBy {
	case "", "size", "name":
	default:
		h.fail(w, r, fmt.Errorf("%w: sort must be size or name", errBadRequest))
		return
	}

	content, err := h.deps.Index.DirectoryContent(r.Context(), q.Get("path"), sortBy)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

func (h *handlers) topFiles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultTopLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	files, err := h.deps.Index.TopFiles(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *handlers) searchFiles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultSearchLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	files, err := h.deps.Index.SearchFiles(r.Context(), r.URL.Query().Get("term"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *handlers) saveList(w http.ResponseWriter, r *http.Request) {
	var req saveListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}
	if req.Path == "" {
		h.fail(w, r, fmt.Errorf("%w: path is required", errBadRequest))
		return
	}
	if h.deps.SaveList == nil || h.deps.ListDir == "" {
		h.fail(w, r, fmt.Errorf("%w: saving lists is disabled", errForbidden))
		return
	}
	path, err := resolveListPath(h.deps.ListDir, req.Path)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.deps.SaveList(path, req.Lines); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveListPath places name inside dir. Relative names are taken from dir;
// absolute names must already lie inside it. Symlinks in the target's
// directory are resolved so a link cannot lead the write outside dir.
func resolveListPath(dir, name string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve list directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	target := name
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	parent := filepath.Dir(target)
	if resolved, err := filepath.EvalSymlinks(parent); err == nil {
		parent = resolved
	}
	if !within(root, parent) {
		return "", fmt.Errorf("%w: %s is outside the list directory", errForbidden, name)
	}
	return filepath.Join(parent, filepath.Base(target)), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (h *handlers) publish(e events.Event) {
	if h.deps.Broadcaster != nil {
		h.deps.Broadcaster.Publish(e)
	}
}

// parseLimit reads the limit query parameter. Values above maxLimit are
// clamped; zero is allowed and yields an empty result.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest)
	}
	return min(n, maxLimit), nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, ingest.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoActiveIndex), errors.Is(err, snapshot.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.deps.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
