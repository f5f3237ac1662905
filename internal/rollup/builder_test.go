package rollup

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/Micos01/dir-analysis/internal/db"
)

func TestBuilderDirStats(t *testing.T) {
	database, err := db.OpenWriter(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	exec := func(query string, args ...any) {
		if _, err := database.Exec(query, args...); err != nil {
			t.Fatalf("exec %q: %v", query, err)
		}
	}
	insertDir := func(path string, size int64) {
		exec(`INSERT INTO dirs (path, size_bytes, size_str) VALUES (?, ?, '')`, path, size)
	}
	insertFile := func(parent, name string, size int64) {
		exec(`INSERT INTO files (name, size_bytes, size_str, parent_path) VALUES (?, ?, '', ?)`, name, size, parent)
	}

	insertDir("/root", 35)
	insertDir("/root/a", 15)
	insertDir("/root/b", 20)
	insertDir("/root/empty", 0)
	insertFile("/root/a", "file1", 10)
	insertFile("/root/a", "file2", 5)
	insertFile("/root/b", "file3", 20)

	if err := db.BuildIndexes(database); err != nil {
		t.Fatalf("build indexes: %v", err)
	}

	var calls int
	var lastDone, lastTotal int64
	builder := NewBuilder(database)
	builder.SetProgressFunc(func(done, total int64) {
		calls++
		lastDone, lastTotal = done, total
	})
	if err := builder.Build(context.Background()); err != nil {
		t.Fatalf("build rollups: %v", err)
	}

	if calls != 2 || lastDone != 2 || lastTotal != 4 {
		t.Fatalf("unexpected progress: calls=%d done=%d total=%d", calls, lastDone, lastTotal)
	}

	ctx := context.Background()
	a, err := db.GetDirectory(ctx, database, "/root/a", '/')
	if err != nil {
		t.Fatalf("get /root/a: %v", err)
	}
	if a.FileCount != 2 || a.FileBytes != 15 {
		t.Fatalf("expected /root/a 2 files/15 bytes, got %d/%d", a.FileCount, a.FileBytes)
	}

	empty, err := db.GetDirectory(ctx, database, "/root/empty", '/')
	if err != nil {
		t.Fatalf("get /root/empty: %v", err)
	}
	if empty.FileCount != 0 || empty.FileBytes != 0 {
		t.Fatalf("expected empty stats, got %d/%d", empty.FileCount, empty.FileBytes)
	}

	// A second build replaces rather than duplicates.
	if err := builder.Build(ctx); err != nil {
		t.Fatalf("rebuild rollups: %v", err)
	}
	var rows int64
	if err := database.QueryRow(`SELECT COUNT(*) FROM dir_stats`).Scan(&rows); err != nil {
		t.Fatalf("count stats: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 dir_stats rows, got %d", rows)
	}
}

func TestBuilderSaturatesFileBytes(t *testing.T) {
	database, err := db.OpenWriter(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	exec := func(query string, args ...any) {
		if _, err := database.Exec(query, args...); err != nil {
			t.Fatalf("exec %q: %v", query, err)
		}
	}
	exec(`INSERT INTO dirs (path, size_bytes, size_str) VALUES ('/huge', ?, '')`, int64(math.MaxInt64))
	exec(`INSERT INTO dirs (path, size_bytes, size_str) VALUES ('/small', 3, '')`)
	for _, name := range []string{"a", "b", "c"} {
		exec(`INSERT INTO files (name, size_bytes, size_str, parent_path) VALUES (?, ?, '', '/huge')`, name, int64(math.MaxInt64))
	}
	exec(`INSERT INTO files (name, size_bytes, size_str, parent_path) VALUES ('x', 1, '', '/small')`)
	exec(`INSERT INTO files (name, size_bytes, size_str, parent_path) VALUES ('y', 2, '', '/small')`)

	if err := db.BuildIndexes(database); err != nil {
		t.Fatalf("build indexes: %v", err)
	}
	if err := NewBuilder(database).Build(context.Background()); err != nil {
		t.Fatalf("build rollups: %v", err)
	}

	ctx := context.Background()
	huge, err := db.GetDirectory(ctx, database, "/huge", '/')
	if err != nil {
		t.Fatalf("get /huge: %v", err)
	}
	if huge.FileCount != 3 || huge.FileBytes != math.MaxInt64 {
		t.Fatalf("expected /huge 3 files/MaxInt64 bytes, got %d/%d", huge.FileCount, huge.FileBytes)
	}

	small, err := db.GetDirectory(ctx, database, "/small", '/')
	if err != nil {
		t.Fatalf("get /small: %v", err)
	}
	if small.FileCount != 2 || small.FileBytes != 3 {
		t.Fatalf("expected /small 2 files/3 bytes, got %d/%d", small.FileCount, small.FileBytes)
	}
}
