package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/pathutil"
)

// ErrDirectoryNotFound is returned when a path has no directory record.
var ErrDirectoryNotFound = errors.New("directory not found")

const dirColumns = `d.path, d.size_bytes, d.size_str, COALESCE(s.file_count, 0), COALESCE(s.file_bytes, 0)`

const fileColumns = `name, size_bytes, size_str, parent_path`

// GetDirectory returns the directory record stored for path.
func GetDirectory(ctx context.Context, db *sql.DB, path string, sep byte) (*entry.Dir, error) {
	path = pathutil.Normalize(path, sep)
	cache := getDirCache(db)
	if cache != nil {
		if d, ok := cache.Get(path); ok {
			return &d, nil
		}
	}

	var d entry.Dir
	err := db.QueryRowContext(ctx, `
		SELECT `+dirColumns+`
		FROM dirs d
		LEFT JOIN dir_stats s ON s.path = d.path
		WHERE d.path = ?
	`, path).Scan(&d.Path, &d.SizeBytes, &d.SizeStr, &d.FileCount, &d.FileBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("directory lookup failed: %w", err)
	}

	if cache != nil {
		cache.Set(path, d)
	}
	return &d, nil
}

// LoadDirectoryContent returns the immediate child directories and files of
// path. Child directories are found by a range scan over the path prefix and
// filtered to those with no further separator. An unknown path yields empty
// content rather than an error.
func LoadDirectoryContent(ctx context.Context, db *sql.DB, path string, sep byte, sortBy string) (*entry.DirectoryContent, error) {
	path = pathutil.Normalize(path, sep)
	content := &entry.DirectoryContent{
		Directories: []entry.Dir{},
		Files:       []entry.File{},
	}
	if path == "" {
		return content, nil
	}

	dir, err := GetDirectory(ctx, db, path, sep)
	switch {
	case err == nil:
		content.Directory = dir
	case !errors.Is(err, ErrDirectoryNotFound):
		return nil, err
	}

	dirOrder := "d.size_bytes DESC, d.path ASC"
	fileOrder := "size_bytes DESC, name ASC, id ASC"
	if sortBy == "name" {
		dirOrder = "d.path ASC"
		fileOrder = "name ASC, id ASC"
	}

	prefix := pathutil.ChildPrefix(path, sep)
	// substr and instr count bytes on blobs, so the prefix length is in bytes.
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM dirs d
		LEFT JOIN dir_stats s ON s.path = d.path
		WHERE d.path >= ? AND d.path < ?
		  AND length(CAST(d.path AS BLOB)) > ?
		  AND instr(substr(CAST(d.path AS BLOB), ?), CAST(? AS BLOB)) = 0
		ORDER BY %s
	`, dirColumns, dirOrder),
		prefix, pathutil.UpperBound(prefix, sep), len(prefix), len(prefix)+1, string(sep))
	if err != nil {
		return nil, fmt.Errorf("child directory query failed: %w", err)
	}
	for rows.Next() {
		var d entry.Dir
		if err := rows.Scan(&d.Path, &d.SizeBytes, &d.SizeStr, &d.FileCount, &d.FileBytes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		content.Directories = append(content.Directories, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("child directory query failed: %w", err)
	}

	files, err := queryFiles(ctx, db, fmt.Sprintf(`
		SELECT %s FROM files
		WHERE parent_path = ?
		ORDER BY %s
	`, fileColumns, fileOrder), path)
	if err != nil {
		return nil, err
	}
	content.Files = files

	return content, nil
}

// TopFiles returns the limit largest files. Equal sizes keep report order.
func TopFiles(ctx context.Context, db *sql.DB, limit int) ([]entry.File, error) {
	if limit <= 0 {
		return []entry.File{}, nil
	}
	return queryFiles(ctx, db, `
		SELECT `+fileColumns+` FROM files
		ORDER BY size_bytes DESC, id ASC
		LIMIT ?
	`, limit)
}

// SearchFiles returns files whose name or parent path contains term, largest
// first. Matching is ASCII case-insensitive.
func SearchFiles(ctx context.Context, db *sql.DB, term string, limit int) ([]entry.File, error) {
	if limit <= 0 {
		return []entry.File{}, nil
	}
	pattern := "%" + escapeLike(term) + "%"
	return queryFiles(ctx, db, `
		SELECT `+fileColumns+` FROM files
		WHERE name LIKE ? ESCAPE '\' OR parent_path LIKE ? ESCAPE '\'
		ORDER BY size_bytes DESC, id ASC
		LIMIT ?
	`, pattern, pattern, limit)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func queryFiles(ctx context.Context, db *sql.DB, query string, args ...any) ([]entry.File, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("file query failed: %w", err)
	}
	defer rows.Close()

	files := []entry.File{}
	for rows.Next() {
		var f entry.File
		if err := rows.Scan(&f.Name, &f.SizeBytes, &f.SizeStr, &f.ParentPath); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// LoadSummary computes totals from the store. The root is the directory with
// the shortest path; ties go to the lexicographically smallest path. An empty
// store has no root and a total size of zero.
func LoadSummary(ctx context.Context, db *sql.DB) (entry.Summary, error) {
	var s entry.Summary
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dirs`).Scan(&s.TotalDirs); err != nil {
		return s, fmt.Errorf("failed to count directories: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&s.TotalFiles); err != nil {
		return s, fmt.Errorf("failed to count files: %w", err)
	}

	err := db.QueryRowContext(ctx, `
		SELECT path, size_bytes FROM dirs
		ORDER BY length(path), path
		LIMIT 1
	`).Scan(&s.RootPath, &s.TotalSizeBytes)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("failed to load root: %w", err)
	}
	return s, nil
}

// WriteReportMeta stores the single report_meta row.
func WriteReportMeta(ctx context.Context, db *sql.DB, m entry.ReportMeta) error {
	var end any
	if !m.EndTime.IsZero() {
		end = m.EndTime.Unix()
	}
	_, err := db.ExecContext(ctx, `
		INSERT OR REPLACE INTO report_meta (
			id, report_path, start_time, end_time, root_path, total_size,
			dir_count, file_count, line_count, malformed_count, orphan_count, dropped_count
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ReportPath, m.StartTime.Unix(), end, m.Summary.RootPath, m.Summary.TotalSizeBytes,
		m.Summary.TotalDirs, m.Summary.TotalFiles, m.Stats.Lines, m.Stats.Malformed,
		m.Stats.Orphans, m.Stats.Dropped)
	if err != nil {
		return fmt.Errorf("failed to write report meta: %w", err)
	}
	return nil
}

// GetReportMeta retrieves report metadata.
func GetReportMeta(ctx context.Context, db *sql.DB) (*entry.ReportMeta, error) {
	var m entry.ReportMeta
	var startTime, endTime int64

	err := db.QueryRowContext(ctx, `
		SELECT report_path, start_time, COALESCE(end_time, 0), root_path, total_size,
		       dir_count, file_count, line_count, malformed_count, orphan_count, dropped_count
		FROM report_meta WHERE id = 1
	`).Scan(&m.ReportPath, &startTime, &endTime, &m.Summary.RootPath, &m.Summary.TotalSizeBytes,
		&m.Summary.TotalDirs, &m.Summary.TotalFiles, &m.Stats.Lines, &m.Stats.Malformed,
		&m.Stats.Orphans, &m.Stats.Dropped)
	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}
	m.Stats.Dirs = m.Summary.TotalDirs
	m.Stats.Files = m.Summary.TotalFiles

	return &m, nil
}
