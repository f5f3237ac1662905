// Package session holds the currently active index and answers queries
// against it. At most one store is active; a successful parse replaces it
// and readers that already hold the previous store keep using it until they
// release it.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Micos01/dir-analysis/internal/db"
	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/metrics"
	"github.com/Micos01/dir-analysis/internal/pathutil"
	"github.com/Micos01/dir-analysis/internal/snapshot"
)

// ErrNoActiveIndex is returned by queries issued before any report is loaded.
var ErrNoActiveIndex = errors.New("no report loaded")

// Store is a reference-counted read handle on one finalized store.
type Store struct {
	path    string
	db      *sql.DB
	sep     byte
	summary entry.Summary

	mu   sync.Mutex
	refs int
}

func openStore(ctx context.Context, path string, sep byte) (*Store, error) {
	database, err := db.OpenReader(path)
	if err != nil {
		return nil, err
	}
	summary, err := db.LoadSummary(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return &Store{path: path, db: database, sep: sep, summary: summary, refs: 1}, nil
}

func (st *Store) acquire() {
	st.mu.Lock()
	st.refs++
	st.mu.Unlock()
}

// Release drops a reference. The database is closed with the last one.
func (st *Store) Release() {
	st.mu.Lock()
	st.refs--
	last := st.refs == 0
	st.mu.Unlock()
	if last {
		db.ReleaseCache(st.db)
		st.db.Close()
	}
}

// Path returns the store file path.
func (st *Store) Path() string { return st.path }

// Summary returns the totals of the loaded report.
func (st *Store) Summary() entry.Summary { return st.summary }

// DirectoryContent lists the immediate children of path. An empty path
// means the report root.
func (st *Store) DirectoryContent(ctx context.Context, path, sortBy string) (*entry.DirectoryContent, error) {
	defer observe("directory_content", time.Now())
	if path == "" {
		path = st.summary.RootPath
	}
	return db.LoadDirectoryContent(ctx, st.db, path, st.sep, sortBy)
}

// Directory returns the record for one directory.
func (st *Store) Directory(ctx context.Context, path string) (*entry.Dir, error) {
	defer observe("directory", time.Now())
	return db.GetDirectory(ctx, st.db, path, st.sep)
}

// TopFiles returns the limit largest files.
func (st *Store) TopFiles(ctx context.Context, limit int) ([]entry.File, error) {
	defer observe("top_files", time.Now())
	return db.TopFiles(ctx, st.db, limit)
}

// SearchFiles returns files whose name or parent path contains term.
func (st *Store) SearchFiles(ctx context.Context, term string, limit int) ([]entry.File, error) {
	defer observe("search_files", time.Now())
	return db.SearchFiles(ctx, st.db, term, limit)
}

// Meta returns the ingestion metadata recorded in the store.
func (st *Store) Meta(ctx context.Context) (*entry.ReportMeta, error) {
	return db.GetReportMeta(ctx, st.db)
}

func observe(query string, start time.Time) {
	metrics.RecordQuery(query, time.Since(start))
}

// Session owns the active store.
type Session struct {
	mgr *snapshot.Manager
	sep byte
	log zerolog.Logger

	mu     sync.Mutex
	active *Store

	// parseMu serializes ingests of different reports; group collapses
	// concurrent parses of the same report into one.
	parseMu sync.Mutex
	group   singleflight.Group
}

// New creates a session that ingests through mgr. sep is the report path
// separator.
func New(mgr *snapshot.Manager, sep byte, log zerolog.Logger) *Session {
	if sep == 0 {
		sep = pathutil.DefaultSeparator
	}
	return &Session{mgr: mgr, sep: sep, log: log}
}

// Parse ingests the report at reportPath and makes it the active index.
// Callers asking for the same report while it is being parsed share the
// first caller's result. On failure the previous index stays active.
//
// The shared ingest runs under the first caller's ctx, so cancelling it
// fails every caller that joined. Callers that should not abort when their
// requester goes away, such as HTTP handlers, pass context.WithoutCancel.
func (s *Session) Parse(ctx context.Context, reportPath string) (entry.Summary, error) {
	key := reportPath
	if abs, err := filepath.Abs(reportPath); err == nil {
		key = abs
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		s.parseMu.Lock()
		defer s.parseMu.Unlock()

		res, err := s.mgr.Ingest(ctx, reportPath)
		if err != nil {
			return entry.Summary{}, err
		}
		return s.open(ctx, res.Path)
	})
	if shared {
		s.log.Debug().Str("report", key).Msg("joined in-flight parse")
	}
	if err != nil {
		return entry.Summary{}, err
	}
	return v.(entry.Summary), nil
}

// Open makes an existing store file the active index.
func (s *Session) Open(ctx context.Context, storePath string) (entry.Summary, error) {
	return s.open(ctx, storePath)
}

// OpenLatest activates the most recent store in the manager's data dir.
func (s *Session) OpenLatest(ctx context.Context) (entry.Summary, error) {
	path, err := s.mgr.GetLatest()
	if err != nil {
		return entry.Summary{}, err
	}
	return s.open(ctx, path)
}

func (s *Session) open(ctx context.Context, path string) (entry.Summary, error) {
	st, err := openStore(ctx, path, s.sep)
	if err != nil {
		return entry.Summary{}, fmt.Errorf("failed to open store: %w", err)
	}
	s.swap(st)
	metrics.SetActiveSummary(st.summary)
	s.log.Info().Str("store", path).Str("root", st.summary.RootPath).Msg("active index replaced")
	return st.summary, nil
}

// swap publishes st and drops the session's reference on the previous store.
func (s *Session) swap(st *Store) {
	s.mu.Lock()
	prev := s.active
	s.active = st
	s.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
}

// Acquire returns the active store with an extra reference. The caller must
// call Release.
func (s *Session) Acquire() (*Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoActiveIndex
	}
	s.active.acquire()
	return s.active, nil
}

// Loaded reports whether an index is active.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Summary returns the active report's totals.
func (s *Session) Summary() (entry.Summary, error) {
	st, err := s.Acquire()
	if err != nil {
		return entry.Summary{}, err
	}
	defer st.Release()
	return st.Summary(), nil
}

// DirectoryContent lists the immediate children of path in the active index.
func (s *Session) DirectoryContent(ctx context.Context, path, sortBy string) (*entry.DirectoryContent, error) {
	st, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer st.Release()
	return st.DirectoryContent(ctx, path, sortBy)
}

// TopFiles returns the limit largest files in the active index.
func (s *Session) TopFiles(ctx context.Context, limit int) ([]entry.File, error) {
	st, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer st.Release()
	return st.TopFiles(ctx, limit)
}

// SearchFiles searches the active index.
func (s *Session) SearchFiles(ctx context.Context, term string, limit int) ([]entry.File, error) {
	st, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer st.Release()
	return st.SearchFiles(ctx, term, limit)
}

// Meta returns the active report's ingestion metadata.
func (s *Session) Meta(ctx context.Context) (*entry.ReportMeta, error) {
	st, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer st.Release()
	return st.Meta(ctx)
}

// Close drops the active index.
func (s *Session) Close() error {
	s.mu.Lock()
	prev := s.active
	s.active = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Release()
	}
	return nil
}
