package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Micos01/dir-analysis/internal/db"
	"github.com/Micos01/dir-analysis/internal/ingest"
)

const testReport = "C:\\Data [10 MB]\n  [4 MB] big.bin\n  [1 KB] small.txt\nC:\\Data\\Sub [6 MB]\n  [6 MB] nested.bin\n"

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

func TestManagerIngestCreatesLatestAndRetention(t *testing.T) {
	reportPath := writeReport(t, testReport)
	dataDir := t.TempDir()
	mgr := NewManager(dataDir, 1)

	var stages []string
	mgr.SetStageFunc(func(s string) { stages = append(stages, s) })

	ctx := context.Background()
	first, err := mgr.Ingest(ctx, reportPath)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Fatalf("first store missing: %v", err)
	}
	if first.Meta.Summary.TotalFiles != 3 || first.Meta.Summary.RootPath != `C:\Data` {
		t.Fatalf("unexpected summary: %+v", first.Meta.Summary)
	}
	if len(stages) != 2 || stages[0] != "scan" || stages[1] != "finalize" {
		t.Fatalf("unexpected stages: %v", stages)
	}

	latest, err := mgr.GetLatest()
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	firstResolved, err := filepath.EvalSymlinks(first.Path)
	if err != nil {
		t.Fatalf("resolve first store: %v", err)
	}
	if latest != firstResolved {
		t.Fatalf("latest does not point to first store: %s", latest)
	}

	second, err := mgr.Ingest(ctx, reportPath)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.Path == first.Path {
		t.Fatalf("expected a distinct store for the second ingest")
	}
	if _, err := os.Stat(second.Path); err != nil {
		t.Fatalf("second store missing: %v", err)
	}
	if _, err := os.Stat(first.Path); err == nil {
		t.Fatalf("expected first store to be pruned")
	}

	stores, err := mgr.ListStores()
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if len(stores) != 1 || stores[0] != second.Path {
		t.Fatalf("unexpected stores: %v", stores)
	}
}

func TestManagerStoreIsReadableAfterIngest(t *testing.T) {
	reportPath := writeReport(t, testReport)
	mgr := NewManager(t.TempDir(), 0)

	res, err := mgr.Ingest(context.Background(), reportPath)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	database, err := db.OpenReader(res.Path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer database.Close()

	meta, err := db.GetReportMeta(context.Background(), database)
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if meta.ReportPath != reportPath || meta.Summary != res.Meta.Summary {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	if _, err := database.Exec(`DELETE FROM files`); err == nil {
		t.Fatalf("expected reader to be read-only")
	}
}

func TestManagerMissingReportLeavesDataDirUntouched(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	mgr := NewManager(dataDir, 3)

	_, err := mgr.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, ingest.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
	if _, err := os.Stat(dataDir); !os.IsNotExist(err) {
		t.Fatalf("expected data dir not to be created, got %v", err)
	}
}

func TestManagerFailedIngestRemovesTempStore(t *testing.T) {
	reportPath := writeReport(t, testReport)
	dataDir := t.TempDir()
	mgr := NewManager(dataDir, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mgr.Ingest(ctx, reportPath); err == nil {
		t.Fatalf("expected cancelled ingest to fail")
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		t.Fatalf("read data dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".db") || strings.Contains(e.Name(), ".db-") {
			t.Fatalf("unexpected leftover file %s", e.Name())
		}
	}
	if _, err := mgr.GetLatest(); err == nil {
		t.Fatalf("expected no latest store")
	}
}

func TestManagerRejectsConcurrentIngest(t *testing.T) {
	dataDir := t.TempDir()
	holder := NewManager(dataDir, 0)
	if err := holder.acquireLock(); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer holder.releaseLock()

	mgr := NewManager(dataDir, 0)
	_, err := mgr.Ingest(context.Background(), writeReport(t, testReport))
	if !errors.Is(err, ErrLocked) || !errors.Is(err, ingest.ErrStoreInit) {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestStoreNamesSortWithinOneSecond(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var names []string
	// Random id prefixes must not decide the order.
	for i := 0; i < 20; i++ {
		names = append(names, storeName(base.Add(time.Duration(i)*time.Millisecond), uuid.New()))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("store %q does not sort before %q", names[i-1], names[i])
		}
	}
	if !strings.HasPrefix(names[0], "report-20260301-120000.000000000-") {
		t.Fatalf("unexpected store name %q", names[0])
	}
}

func TestManagerRetentionKeepsNewestOfRapidIngests(t *testing.T) {
	reportPath := writeReport(t, testReport)
	dataDir := t.TempDir()
	mgr := NewManager(dataDir, 1)

	ctx := context.Background()
	var last *Result
	for i := 0; i < 3; i++ {
		res, err := mgr.Ingest(ctx, reportPath)
		if err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
		last = res
	}

	stores, err := mgr.ListStores()
	if err != nil {
		t.Fatalf("list stores: %v", err)
	}
	if len(stores) != 1 || filepath.Base(stores[0]) != filepath.Base(last.Path) {
		t.Fatalf("retention kept %v, want %s", stores, last.Path)
	}
}
