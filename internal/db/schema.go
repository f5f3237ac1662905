package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"

	_ "modernc.org/sqlite"
)

const dirsTableDDL = `
CREATE TABLE IF NOT EXISTS dirs (
    id INTEGER PRIMARY KEY,
    path TEXT UNIQUE NOT NULL,
    size_bytes INTEGER NOT NULL,
    size_str TEXT NOT NULL
);
`

const filesTableDDL = `
CREATE TABLE IF NOT EXISTS files (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    size_str TEXT NOT NULL,
    parent_path TEXT NOT NULL
);
`

const dirStatsTableDDL = `
CREATE TABLE IF NOT EXISTS dir_stats (
    path TEXT PRIMARY KEY,
    file_count INTEGER NOT NULL,
    file_bytes INTEGER NOT NULL
);
`

const reportMetaTableDDL = `
CREATE TABLE IF NOT EXISTS report_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    report_path TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    root_path TEXT NOT NULL DEFAULT '',
    total_size INTEGER DEFAULT 0,
    dir_count INTEGER DEFAULT 0,
    file_count INTEGER DEFAULT 0,
    line_count INTEGER DEFAULT 0,
    malformed_count INTEGER DEFAULT 0,
    orphan_count INTEGER DEFAULT 0,
    dropped_count INTEGER DEFAULT 0
);
`

const filesParentSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_files_parent_size ON files(parent_path, size_bytes DESC);`
const filesSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_files_size ON files(size_bytes DESC);`
const dirsPathLengthIndexDDL = `CREATE INDEX IF NOT EXISTS idx_dirs_path_length ON dirs(length(path), path);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	ddls := []string{
		dirsTableDDL,
		filesTableDDL,
		dirStatsTableDDL,
		reportMetaTableDDL,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// OpenWriter opens the store at path for ingestion. The pool is limited to
// one connection so per-connection pragmas stay in effect.
func OpenWriter(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	database.SetMaxOpenConns(1)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return database, nil
}

// readPragmas are applied to every connection of a reader pool.
var readPragmas = []string{
	"query_only(1)",
	"busy_timeout(5000)",
	"cache_size(-64000)",
	"temp_store(MEMORY)",
	"mmap_size(268435456)",
}

// ReaderDSN builds a data source name that opens path read-only with the
// read pragmas applied on each new connection.
func ReaderDSN(path string) string {
	q := url.Values{}
	for _, p := range readPragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// OpenReader opens a finalized store for queries.
func OpenReader(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	database, err := sql.Open("sqlite", ReaderDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return database, nil
}

// ApplyWritePragmas configures SQLite for bulk ingestion.
func ApplyWritePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456", // 256MB mmap
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyIndexPragmas configures SQLite for index builds.
// When diskTemp is true, temp files are stored on disk to reduce RAM usage.
func ApplyIndexPragmas(db *sql.DB, diskTemp bool, tmpDir string) error {
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite temp dir: %w", err)
		}
		if err := os.Setenv("SQLITE_TMPDIR", tmpDir); err != nil {
			return fmt.Errorf("failed to set SQLITE_TMPDIR: %w", err)
		}
	}

	pragma := "PRAGMA temp_store = MEMORY"
	if diskTemp {
		pragma = "PRAGMA temp_store = FILE"
	}
	if _, err := db.Exec(pragma); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	return nil
}

// BuildIndexes creates the secondary indexes once the bulk load is done.
// The unique index on dirs.path exists from the start because directory
// upserts depend on it.
func BuildIndexes(db *sql.DB) error {
	indexes := []string{
		filesParentSizeIndexDDL,
		filesSizeIndexDDL,
		dirsPathLengthIndexDDL,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Finalize prepares the database for read-only access.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}

	// Readers open the file without a WAL.
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	return nil
}
