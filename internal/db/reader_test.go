package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Micos01/dir-analysis/internal/entry"
)

func TestLoadDirectoryContentReturnsImmediateChildrenOnly(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`C:\Data`, 100),
		fileRec(`C:\Data`, "big.bin", 40),
		fileRec(`C:\Data`, "small.txt", 1),
		dirRec(`C:\Data\Sub`, 50),
		fileRec(`C:\Data\Sub`, "nested.bin", 50),
		dirRec(`C:\Data\Sub\Deep`, 10),
		dirRec(`C:\Data\Zed`, 70),
		dirRec(`C:\DataX`, 5),
		dirRec(`C:\Data.old`, 5),
	})

	ctx := context.Background()
	content, err := LoadDirectoryContent(ctx, database, `C:\Data`, '\\', "size")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}

	if content.Directory == nil || content.Directory.Path != `C:\Data` {
		t.Fatalf("expected own directory record, got %+v", content.Directory)
	}
	if len(content.Directories) != 2 {
		t.Fatalf("expected 2 child dirs, got %+v", content.Directories)
	}
	if content.Directories[0].Path != `C:\Data\Zed` || content.Directories[1].Path != `C:\Data\Sub` {
		t.Fatalf("unexpected dir order: %+v", content.Directories)
	}
	if len(content.Files) != 2 || content.Files[0].Name != "big.bin" || content.Files[1].Name != "small.txt" {
		t.Fatalf("unexpected files: %+v", content.Files)
	}

	byName, err := LoadDirectoryContent(ctx, database, `C:\Data\`, '\\', "name")
	if err != nil {
		t.Fatalf("load content by name: %v", err)
	}
	if byName.Directories[0].Path != `C:\Data\Sub` {
		t.Fatalf("expected name order, got %+v", byName.Directories)
	}
}

func TestLoadDirectoryContentVolumeRoot(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`C:\`, 10),
		dirRec(`C:\A`, 5),
		dirRec(`C:\A\B`, 2),
		fileRec(`C:\`, "pagefile.sys", 3),
	})

	content, err := LoadDirectoryContent(context.Background(), database, `C:\`, '\\', "size")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if len(content.Directories) != 1 || content.Directories[0].Path != `C:\A` {
		t.Fatalf("unexpected dirs: %+v", content.Directories)
	}
	if len(content.Files) != 1 {
		t.Fatalf("unexpected files: %+v", content.Files)
	}
}

func TestLoadDirectoryContentUnknownPath(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{dirRec(`C:\Data`, 1)})

	content, err := LoadDirectoryContent(context.Background(), database, `C:\Nope`, '\\', "")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if content.Directory != nil || len(content.Directories) != 0 || len(content.Files) != 0 {
		t.Fatalf("expected empty content, got %+v", content)
	}
}

func TestLoadDirectoryContentIncludesDirStats(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`/srv`, 10),
		dirRec(`/srv/www`, 10),
	})
	if _, err := database.Exec(`INSERT INTO dir_stats (path, file_count, file_bytes) VALUES ('/srv/www', 3, 9)`); err != nil {
		t.Fatalf("insert stats: %v", err)
	}

	content, err := LoadDirectoryContent(context.Background(), database, "/srv", '/', "size")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	if len(content.Directories) != 1 {
		t.Fatalf("unexpected dirs: %+v", content.Directories)
	}
	if d := content.Directories[0]; d.FileCount != 3 || d.FileBytes != 9 {
		t.Fatalf("expected stats 3/9, got %d/%d", d.FileCount, d.FileBytes)
	}
}

func TestTopFilesOrdersBySizeThenReportOrder(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`C:\Data`, 100),
		fileRec(`C:\Data`, "first.bin", 50),
		fileRec(`C:\Data`, "tiny.bin", 1),
		fileRec(`C:\Data`, "second.bin", 50),
		fileRec(`C:\Data`, "huge.bin", 99),
	})

	ctx := context.Background()
	files, err := TopFiles(ctx, database, 3)
	if err != nil {
		t.Fatalf("top files: %v", err)
	}
	want := []string{"huge.bin", "first.bin", "second.bin"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(files))
	}
	for i, name := range want {
		if files[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, files[i].Name)
		}
	}

	none, err := TopFiles(ctx, database, 0)
	if err != nil {
		t.Fatalf("top files with zero limit: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no files for limit 0, got %d", len(none))
	}
}

func TestSearchFilesMatchesNameOrParent(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`C:\Photos`, 100),
		fileRec(`C:\Photos`, "IMG_001.jpg", 30),
		fileRec(`C:\Photos`, "notes.txt", 5),
		dirRec(`C:\Docs`, 100),
		fileRec(`C:\Docs`, "report 50%.pdf", 20),
		fileRec(`C:\Docs`, "photo-index.txt", 40),
	})

	ctx := context.Background()
	files, err := SearchFiles(ctx, database, "photo", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 matches, got %+v", files)
	}
	if files[0].Name != "photo-index.txt" || files[1].Name != "IMG_001.jpg" {
		t.Fatalf("unexpected order: %+v", files)
	}

	files, err = SearchFiles(ctx, database, "50%", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(files) != 1 || files[0].Name != "report 50%.pdf" {
		t.Fatalf("expected literal percent match, got %+v", files)
	}

	files, err = SearchFiles(ctx, database, "IMG_", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected literal underscore match, got %+v", files)
	}

	files, err = SearchFiles(ctx, database, "photo", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected limit to cap results, got %d", len(files))
	}
}

func TestLoadSummaryPicksShortestPathAsRoot(t *testing.T) {
	database := openTestStore(t)
	loadRecords(t, database, []entry.Record{
		dirRec(`D:\Bb`, 7),
		dirRec(`C:\Aa`, 10),
		dirRec(`C:\Aa\Sub`, 3),
		fileRec(`C:\Aa`, "f", 1),
	})

	s, err := LoadSummary(context.Background(), database)
	if err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if s.RootPath != `C:\Aa` || s.TotalSizeBytes != 10 {
		t.Fatalf("unexpected root: %+v", s)
	}
	if s.TotalDirs != 3 || s.TotalFiles != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
}

func TestLoadSummaryEmptyStore(t *testing.T) {
	database := openTestStore(t)

	s, err := LoadSummary(context.Background(), database)
	if err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if s != (entry.Summary{}) {
		t.Fatalf("expected zero summary, got %+v", s)
	}
}

func TestGetDirectoryNotFound(t *testing.T) {
	database := openTestStore(t)

	_, err := GetDirectory(context.Background(), database, `C:\Missing`, '\\')
	if !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected ErrDirectoryNotFound, got %v", err)
	}
}

func TestReportMetaRoundTrip(t *testing.T) {
	database := openTestStore(t)

	start := time.Unix(1700000000, 0)
	in := entry.ReportMeta{
		ReportPath: "/tmp/report.txt",
		StartTime:  start,
		EndTime:    start.Add(time.Minute),
		Summary:    entry.Summary{TotalSizeBytes: 42, TotalDirs: 2, TotalFiles: 3, RootPath: `C:\Data`},
		Stats:      entry.Stats{Lines: 9, Malformed: 1, Orphans: 2, Dropped: 0},
	}
	ctx := context.Background()
	if err := WriteReportMeta(ctx, database, in); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	out, err := GetReportMeta(ctx, database)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if out.Summary != in.Summary || !out.EndTime.Equal(in.EndTime) || out.Stats.Orphans != 2 || out.Stats.Lines != 9 {
		t.Fatalf("unexpected meta: %+v", out)
	}
}
