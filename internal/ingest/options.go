package ingest

import (
	"fmt"

	"github.com/Micos01/dir-analysis/internal/pathutil"
)

// Index build modes.
const (
	IndexModeMemory = "memory"
	IndexModeDisk   = "disk"
)

// Options configures the ingestion pipeline.
type Options struct {
	// BatchSize is the number of records handed to the writer at once.
	// Each batch is committed in its own transaction.
	BatchSize int

	// ChannelDepth is the number of batches that may wait for the writer
	// before the scanner blocks.
	ChannelDepth int

	// ProgressEvery is the number of report lines between progress events.
	ProgressEvery int64

	// Separator is the path separator used by the report.
	Separator byte

	// IndexMode selects where SQLite keeps temporary index build data.
	IndexMode string

	// SQLiteTmpDir overrides the temp directory used for disk index builds.
	SQLiteTmpDir string
}

// DefaultOptions returns sensible defaults for multi-gigabyte reports.
func DefaultOptions() *Options {
	return &Options{
		BatchSize:     5000,
		ChannelDepth:  8,
		ProgressEvery: 150000,
		Separator:     pathutil.DefaultSeparator,
		IndexMode:     IndexModeMemory,
	}
}

// WithBatchSize sets the batch size.
func (o *Options) WithBatchSize(n int) *Options {
	o.BatchSize = n
	return o
}

// WithChannelDepth sets the number of buffered batches.
func (o *Options) WithChannelDepth(n int) *Options {
	o.ChannelDepth = n
	return o
}

// WithProgressEvery sets the progress interval in lines.
func (o *Options) WithProgressEvery(n int64) *Options {
	o.ProgressEvery = n
	return o
}

// WithSeparator sets the report path separator.
func (o *Options) WithSeparator(sep byte) *Options {
	o.Separator = sep
	return o
}

// WithIndexMode sets the index build mode and optional temp directory.
func (o *Options) WithIndexMode(mode, tmpDir string) *Options {
	o.IndexMode = mode
	o.SQLiteTmpDir = tmpDir
	return o
}

// Validate checks that the options can drive a pipeline.
func (o *Options) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.ChannelDepth <= 0 {
		return fmt.Errorf("channel depth must be positive, got %d", o.ChannelDepth)
	}
	if o.ProgressEvery <= 0 {
		return fmt.Errorf("progress interval must be positive, got %d", o.ProgressEvery)
	}
	if o.Separator == 0 {
		return fmt.Errorf("separator must be set")
	}
	switch o.IndexMode {
	case IndexModeMemory, IndexModeDisk:
	default:
		return fmt.Errorf("unknown index mode %q", o.IndexMode)
	}
	return nil
}
