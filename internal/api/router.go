// Package api exposes the loaded report over HTTP for a browser front end.
package api

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/events"
	"github.com/Micos01/dir-analysis/internal/logging"
	"github.com/Micos01/dir-analysis/internal/metrics"
)

// Index is the part of a session the handlers need.
type Index interface {
	Parse(ctx context.Context, reportPath string) (entry.Summary, error)
	Summary() (entry.Summary, error)
	DirectoryContent(ctx context.Context, path, sortBy string) (*entry.DirectoryContent, error)
	TopFiles(ctx context.Context, limit int) ([]entry.File, error)
	SearchFiles(ctx context.Context, term string, limit int) ([]entry.File, error)
}

// SaveListFunc writes a list of paths to a file.
type SaveListFunc func(path string, lines []string) error

// Deps holds dependencies for HTTP handlers.
type Deps struct {
	Index       Index
	Broadcaster *events.Broadcaster
	SaveList    SaveListFunc
	Logger      zerolog.Logger

	// ListDir confines POST /api/lists to files inside it. Empty disables
	// the endpoint.
	ListDir string
	// AllowedOrigins lists the cross-origin front ends allowed to call the
	// API. Empty means same-origin only.
	AllowedOrigins []string
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	h := &handlers{deps: deps}
	r.Route("/api", func(r chi.Router) {
		r.Post("/reports", h.parseReport)
		r.Get("/summary", h.summary)
		r.Get("/directories", h.directory)
		r.Get("/files/top", h.topFiles)
		r.Get("/files/search", h.searchFiles)
		r.Post("/lists", h.saveList)
		r.Get("/events", h.streamEvents)
	})

	return r
}

// CORS lets the listed origins call the API from a browser. Any other
// foreign origin gets 403 before reaching a handler, simple requests
// included. Requests with no Origin, or one matching the Host they were sent
// to, pass through untouched.
func CORS(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || sameOrigin(origin, r.Host) {
				next.ServeHTTP(w, r)
				return
			}
			if !slices.Contains(allowed, origin) {
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func sameOrigin(origin, host string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host != "" && u.Host == host
}
