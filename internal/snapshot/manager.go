// Package snapshot manages the on-disk stores produced by ingestion: each
// report is loaded into a fresh SQLite file that is renamed into place only
// once complete, with a latest.db link and retention pruning.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Micos01/dir-analysis/internal/db"
	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/ingest"
	"github.com/Micos01/dir-analysis/internal/metrics"
	"github.com/Micos01/dir-analysis/internal/report"
)

const (
	storePrefix     = "report-"
	storeTimeLayout = "20060102-150405.000000000"
	storeSuffix     = ".db"
	latestName      = "latest.db"
	lockName        = ".dirana.lock"
)

// ErrLocked means another process is ingesting into the same data dir.
var ErrLocked = errors.New("another ingest is in progress")

// StageFunc is called when the ingest stage changes.
type StageFunc func(stage string)

// Result describes a store produced by Ingest.
type Result struct {
	Path string
	Meta entry.ReportMeta
}

// Manager handles the store lifecycle including locking and retention.
type Manager struct {
	dataDir   string
	retention int
	lockFile  *os.File
	opts      *ingest.Options
	progress  ingest.ProgressFunc
	stageFunc StageFunc
	log       zerolog.Logger
}

// NewManager creates a new store manager. retention is the number of stores
// to keep; zero keeps all of them.
func NewManager(dataDir string, retention int) *Manager {
	return &Manager{
		dataDir:   dataDir,
		retention: retention,
		opts:      ingest.DefaultOptions(),
		log:       zerolog.Nop(),
	}
}

// SetOptions sets the pipeline options used by Ingest.
func (m *Manager) SetOptions(opts *ingest.Options) {
	m.opts = opts
}

// SetProgressFunc sets a callback for progress updates during ingest.
func (m *Manager) SetProgressFunc(f ingest.ProgressFunc) {
	m.progress = f
}

// SetStageFunc sets a callback for ingest stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(log zerolog.Logger) {
	m.log = log
}

// DataDir returns the directory holding the stores.
func (m *Manager) DataDir() string {
	return m.dataDir
}

func (m *Manager) stage(s string) {
	if m.stageFunc != nil {
		m.stageFunc(s)
	}
}

// Ingest loads the report at reportPath into a new store and returns its
// final path. The report is checked and opened before anything is written,
// so a missing or unreadable report leaves the data dir untouched.
func (m *Manager) Ingest(ctx context.Context, reportPath string) (*Result, error) {
	start := time.Now()
	res, err := m.ingest(ctx, reportPath)
	metrics.RecordIngest(time.Since(start), err == nil)
	if err != nil {
		m.log.Error().Err(err).Str("report", reportPath).Msg("ingest failed")
		return nil, err
	}
	return res, nil
}

func (m *Manager) ingest(ctx context.Context, reportPath string) (*Result, error) {
	info, err := os.Stat(reportPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrReportNotFound, reportPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrReportIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ingest.ErrReportIO, reportPath)
	}

	src, err := report.Open(reportPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrReportIO, err)
	}
	defer src.Close()

	if err := os.MkdirAll(m.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %w", ingest.ErrStoreInit, err)
	}

	if err := m.acquireLock(); err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrStoreInit, err)
	}
	defer m.releaseLock()

	id := uuid.New()
	tempPath := filepath.Join(m.dataDir, fmt.Sprintf(".dirana-temp-%s.db", id))
	database, err := m.createStore(tempPath)
	if err != nil {
		removeStore(tempPath)
		return nil, fmt.Errorf("%w: %w", ingest.ErrStoreInit, err)
	}
	discard := func() {
		db.ReleaseCache(database)
		database.Close()
		removeStore(tempPath)
	}

	m.log.Info().Str("report", reportPath).Int64("bytes", info.Size()).Str("store", tempPath).Msg("ingest started")
	meta := entry.ReportMeta{ReportPath: reportPath, StartTime: time.Now()}

	m.stage("scan")
	pipeline := ingest.New(m.opts)
	pipeline.SetLogger(m.log)
	pipeline.SetProgressFunc(m.progress)
	stats, err := pipeline.Run(ctx, src, database)
	if err != nil {
		discard()
		return nil, err
	}

	summary, err := db.LoadSummary(ctx, database)
	if err != nil {
		discard()
		return nil, fmt.Errorf("%w: %w", ingest.ErrStoreWrite, err)
	}
	meta.Summary = summary
	meta.Stats = stats
	meta.EndTime = time.Now()
	if err := db.WriteReportMeta(ctx, database, meta); err != nil {
		discard()
		return nil, fmt.Errorf("%w: %w", ingest.ErrStoreWrite, err)
	}

	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		discard()
		return nil, fmt.Errorf("%w: failed to finalize store: %w", ingest.ErrStoreWrite, err)
	}
	db.ReleaseCache(database)
	database.Close()

	// Atomic rename to final location
	finalName := storeName(meta.EndTime, id)
	finalPath := filepath.Join(m.dataDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		removeStore(tempPath)
		return nil, fmt.Errorf("%w: failed to rename store: %w", ingest.ErrStoreWrite, err)
	}

	m.updateLatest(finalName)
	if err := m.prune(finalName); err != nil {
		m.log.Warn().Err(err).Msg("failed to prune old stores")
	}

	metrics.RecordLineStats(stats)
	ev := m.log.Info()
	if stats.Malformed > 0 || stats.Orphans > 0 || stats.Dropped > 0 {
		ev = m.log.Warn()
	}
	ev.Str("store", finalPath).
		Int64("dirs", summary.TotalDirs).
		Int64("files", summary.TotalFiles).
		Int64("lines", stats.Lines).
		Int64("malformed", stats.Malformed).
		Int64("orphans", stats.Orphans).
		Int64("dropped", stats.Dropped).
		Dur("took", meta.EndTime.Sub(meta.StartTime)).
		Msg("ingest complete")

	return &Result{Path: finalPath, Meta: meta}, nil
}

func (m *Manager) createStore(path string) (*sql.DB, error) {
	database, err := db.OpenWriter(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return database, nil
}

// removeStore deletes a store file and any journal files next to it.
func removeStore(path string) {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		os.Remove(path + suffix)
	}
}

// updateLatest points latest.db at name via a temp link and rename.
func (m *Manager) updateLatest(name string) {
	latestPath := filepath.Join(m.dataDir, latestName)
	tempLink := filepath.Join(m.dataDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(name, tempLink); err != nil {
		m.log.Warn().Err(err).Msg("failed to create latest.db symlink")
		return
	}
	if err := os.Rename(tempLink, latestPath); err != nil {
		os.Remove(tempLink)
		m.log.Warn().Err(err).Msg("failed to update latest.db symlink")
	}
}

// prune removes the oldest stores beyond the retention count. keep is never
// removed.
func (m *Manager) prune(keep string) error {
	if m.retention <= 0 {
		return nil
	}

	names, err := m.storeNames()
	if err != nil {
		return err
	}

	var others []string
	for _, n := range names {
		if n != keep {
			others = append(others, n)
		}
	}

	for len(others) > m.retention-1 {
		oldPath := filepath.Join(m.dataDir, others[0])
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", others[0], err)
		}
		m.log.Debug().Str("store", oldPath).Msg("pruned store")
		others = others[1:]
	}

	return nil
}

// storeName stamps a store with its finish time down to the nanosecond so
// stores from the same second still sort in creation order.
func storeName(t time.Time, id uuid.UUID) string {
	return fmt.Sprintf("%s%s-%s%s", storePrefix, t.UTC().Format(storeTimeLayout), id.String()[:8], storeSuffix)
}

// storeNames lists store file names oldest first.
func (m *Manager) storeNames() ([]string, error) {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), storePrefix) && strings.HasSuffix(e.Name(), storeSuffix) {
			names = append(names, e.Name())
		}
	}

	// Names start with a timestamp, so this is chronological.
	sort.Strings(names)
	return names, nil
}

// GetLatest returns the path to the latest store.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.dataDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err != nil {
		return "", fmt.Errorf("no latest store found: %w", err)
	}
	return resolved, nil
}

// ListStores returns all available stores sorted by date.
func (m *Manager) ListStores() ([]string, error) {
	names, err := m.storeNames()
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(m.dataDir, n)
	}
	return paths, nil
}
