package entry

import "time"

// Kind represents the type of a report line.
type Kind uint8

const (
	KindFile Kind = 0
	KindDir  Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// Record is a parsed report line handed from the scanner to the store.
// For directories Path is the full path and Parent is empty; for files
// Name is the leaf name and Parent is the owning directory's path.
type Record struct {
	Kind      Kind
	Path      string
	Name      string
	Parent    string
	SizeBytes int64
	SizeStr   string
	Line      int64
}

// Dir is a directory stored in the index.
type Dir struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	SizeStr   string `json:"size_str"`
	FileCount int64  `json:"file_count"`
	FileBytes int64  `json:"file_bytes"`
}

// File is a file stored in the index.
type File struct {
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	SizeStr    string `json:"size_str"`
	ParentPath string `json:"parent_path"`
}

// DirectoryContent lists the immediate children of a directory.
type DirectoryContent struct {
	Directory   *Dir   `json:"directory,omitempty"`
	Directories []Dir  `json:"directories"`
	Files       []File `json:"files"`
}

// Summary describes a loaded report.
type Summary struct {
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalDirs      int64  `json:"total_dirs"`
	TotalFiles     int64  `json:"total_files"`
	RootPath       string `json:"root_path"`
}

// Stats counts what happened to the lines of a report during ingestion.
type Stats struct {
	Lines     int64 // lines read, blank lines included
	Dirs      int64 // directory records produced by the scanner
	Files     int64 // file records produced by the scanner
	Malformed int64 // lines that could not be classified
	Orphans   int64 // file lines seen before any directory line
	Dropped   int64 // records the store refused to insert
}

// ReportMeta holds metadata about an ingested report.
type ReportMeta struct {
	ReportPath string
	StartTime  time.Time
	EndTime    time.Time
	Summary    Summary
	Stats      Stats
}

// Progress is an advisory notification emitted during ingestion.
// Count is -1 while indexes are being built.
type Progress struct {
	Count  int64  `json:"count"`
	Status string `json:"status"`
}

// ProgressIndexing is the Progress.Count sentinel for the indexing phase.
const ProgressIndexing int64 = -1
