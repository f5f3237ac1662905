package report

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/size"
)

const sampleReport = `C:\Data [10 MB]
  [4 MB] big.bin
  [1 KB] small.txt
C:\Data\Sub [6 MB]
  [6 MB] nested.bin
`

func scanAll(t *testing.T, src Source) ([]entry.Record, entry.Stats) {
	t.Helper()
	sc := NewScanner(src, '\\')
	var recs []entry.Record
	for sc.Next() {
		recs = append(recs, sc.Record())
	}
	require.NoError(t, sc.Err())
	return recs, sc.Stats()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line  string
		kind  lineKind
		text  string
		token string
	}{
		{`C:\Data [10 MB]`, lineDir, `C:\Data`, "10 MB"},
		{`C:\My [old] stuff [1,5 GB]`, lineDir, `C:\My [old] stuff`, "1,5 GB"},
		{`C:\NoClose [7 K`, lineDir, `C:\NoClose`, "7 K"},
		{"C:\\Data [3 MB]\r", lineDir, `C:\Data`, "3 MB"},
		{"  [4 MB] big.bin", lineFile, "big.bin", "4 MB"},
		{"  [ 12 ]   spaced name.txt  ", lineFile, "spaced name.txt", "12"},
		{"  [1 KB] weird]name", lineFile, "weird]name", "1 KB"},
		{"", lineBlank, "", ""},
		{"   \t ", lineBlank, "", ""},
		{"\r", lineBlank, "", ""},
		{"garbage line with no brackets", lineMalformed, "", ""},
		{"  [4 MB]", lineMalformed, "", ""},
		{"  [4 MB no close", lineMalformed, "", ""},
		{"   [4 MB] three spaces", lineMalformed, "", ""},
		{" [4 MB]", lineMalformed, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kind, text, token := classify([]byte(tt.line))
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.text, string(text))
			assert.Equal(t, tt.token, string(token))
		})
	}
}

func TestScannerSampleReport(t *testing.T) {
	recs, stats := scanAll(t, NewReaderSource(strings.NewReader(sampleReport)))
	require.Len(t, recs, 5)

	assert.Equal(t, entry.KindDir, recs[0].Kind)
	assert.Equal(t, `C:\Data`, recs[0].Path)
	assert.Equal(t, 10*size.Megabyte, recs[0].SizeBytes)
	assert.Equal(t, "10 MB", recs[0].SizeStr)

	assert.Equal(t, entry.KindFile, recs[1].Kind)
	assert.Equal(t, "big.bin", recs[1].Name)
	assert.Equal(t, `C:\Data`, recs[1].Parent)
	assert.Equal(t, "small.txt", recs[2].Name)
	assert.Equal(t, int64(1024), recs[2].SizeBytes)

	assert.Equal(t, `C:\Data\Sub`, recs[3].Path)
	assert.Equal(t, "nested.bin", recs[4].Name)
	assert.Equal(t, `C:\Data\Sub`, recs[4].Parent)
	assert.Equal(t, int64(5), recs[4].Line)

	assert.Equal(t, entry.Stats{Lines: 5, Dirs: 2, Files: 3}, stats)
}

func TestScannerDropsOrphansAndMalformedLines(t *testing.T) {
	input := "  [1 KB] orphan.txt\n" +
		"garbage line with no brackets\n" +
		"\n" +
		"C:\\Root [2 KB]\n" +
		"garbage line with no brackets\n" +
		"  [2 KB] kept.txt\n" +
		"\n" +
		"  [5] also-kept.txt"

	recs, stats := scanAll(t, NewReaderSource(strings.NewReader(input)))
	require.Len(t, recs, 3)
	assert.Equal(t, `C:\Root`, recs[0].Path)
	assert.Equal(t, "kept.txt", recs[1].Name)
	assert.Equal(t, `C:\Root`, recs[1].Parent)
	assert.Equal(t, "also-kept.txt", recs[2].Name)
	assert.Equal(t, int64(5), recs[2].SizeBytes)

	assert.Equal(t, int64(8), stats.Lines)
	assert.Equal(t, int64(2), stats.Malformed)
	assert.Equal(t, int64(1), stats.Orphans)
	assert.Equal(t, int64(2), stats.Files)
}

func TestScannerNormalizesDirectoryPaths(t *testing.T) {
	input := "C:\\Data\\ [1 MB]\r\n  [1 MB] a.bin\r\nC:\\ [9 MB]\r\n"
	recs, _ := scanAll(t, NewReaderSource(strings.NewReader(input)))
	require.Len(t, recs, 3)
	assert.Equal(t, `C:\Data`, recs[0].Path)
	assert.Equal(t, `C:\Data`, recs[1].Parent)
	assert.Equal(t, `C:\`, recs[2].Path)
}

func TestReaderSourceLongLines(t *testing.T) {
	name := strings.Repeat("x", readBufferSize*2+17)
	input := "C:\\Long [1]\n  [1] " + name + "\n  [2] short"

	recs, _ := scanAll(t, NewReaderSource(strings.NewReader(input)))
	require.Len(t, recs, 3)
	assert.Equal(t, name, recs[1].Name)
	assert.Equal(t, "short", recs[2].Name)
}

func TestOpenMappedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSuffix(sampleReport, "\n")), 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	recs, stats := scanAll(t, src)
	require.Len(t, recs, 5)
	assert.Equal(t, "nested.bin", recs[4].Name)
	assert.Equal(t, int64(3), stats.Files)
}

func TestOpenEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	src, err := Open(path)
	require.NoError(t, err)
	defer src.Close()

	recs, stats := scanAll(t, src)
	assert.Empty(t, recs)
	assert.Equal(t, int64(0), stats.Lines)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
