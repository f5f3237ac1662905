// Package ingest runs the report ingestion pipeline: a scanner goroutine
// produces record batches into a bounded channel and a writer goroutine
// commits them to the store, after which secondary indexes are built.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/Micos01/dir-analysis/internal/db"
	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/metrics"
	"github.com/Micos01/dir-analysis/internal/report"
	"github.com/Micos01/dir-analysis/internal/rollup"
)

var (
	// ErrReportNotFound means the report path does not exist.
	ErrReportNotFound = errors.New("report not found")
	// ErrReportIO means the report could not be opened or read.
	ErrReportIO = errors.New("report read failed")
	// ErrStoreInit means a fresh store could not be created.
	ErrStoreInit = errors.New("store initialization failed")
	// ErrStoreWrite means a batch transaction could not be opened or committed.
	ErrStoreWrite = errors.New("store write failed")
	// ErrIndexBuild means secondary indexes or aggregates could not be built.
	ErrIndexBuild = errors.New("index build failed")
)

// State is a pipeline phase.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDraining
	StateBuildingIndexes
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDraining:
		return "draining"
	case StateBuildingIndexes:
		return "building-indexes"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProgressFunc receives advisory progress. count is the number of report
// lines read so far, or entry.ProgressIndexing while indexes are built.
// It is called from the scanner goroutine and must not block.
type ProgressFunc func(count int64, status string)

// Pipeline ingests one report into one store. A Pipeline is single-use.
type Pipeline struct {
	opts     *Options
	log      zerolog.Logger
	progress ProgressFunc
	state    atomic.Int32
}

// New creates a pipeline. Nil options mean DefaultOptions.
func New(opts *Options) *Pipeline {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Pipeline{opts: opts, log: zerolog.Nop()}
}

// SetLogger sets the logger used for pipeline events.
func (p *Pipeline) SetLogger(log zerolog.Logger) {
	p.log = log
}

// SetProgressFunc sets a callback for progress updates.
func (p *Pipeline) SetProgressFunc(f ProgressFunc) {
	p.progress = f
}

// State returns the current phase.
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

func (p *Pipeline) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug().Stringer("state", s).Msg("pipeline state")
}

func (p *Pipeline) emit(count int64, status string) {
	if p.progress == nil {
		return
	}
	metrics.RecordProgressEvent()
	p.progress(count, status)
}

// Run scans src into database, which must already hold the schema, and
// then builds indexes and per-directory aggregates. On error the store
// contents are undefined and the caller should discard it.
func (p *Pipeline) Run(ctx context.Context, src report.Source, database *sql.DB) (entry.Stats, error) {
	if err := p.opts.Validate(); err != nil {
		p.setState(StateFailed)
		return entry.Stats{}, err
	}

	stats, err := p.load(ctx, src, database)
	if err != nil {
		p.setState(StateFailed)
		return stats, err
	}

	if err := p.buildIndexes(ctx, database); err != nil {
		p.setState(StateFailed)
		return stats, err
	}

	p.setState(StateReady)
	return stats, nil
}

// load runs the scanner and the writer concurrently until the report is
// exhausted and every batch is committed.
func (p *Pipeline) load(ctx context.Context, src report.Source, database *sql.DB) (entry.Stats, error) {
	p.setState(StateScanning)

	batches := make(chan []entry.Record, p.opts.ChannelDepth)
	writer := db.NewWriter(database, batches, p.log)
	writer.OnCommit(metrics.RecordBatchCommit)

	var stats entry.Stats
	var scanErr, writeErr error

	g := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	g.Go(func(ctx context.Context) error {
		defer close(batches)
		stats, scanErr = p.produce(ctx, src, batches)
		if scanErr == nil {
			p.setState(StateDraining)
		}
		return scanErr
	})
	g.Go(func(ctx context.Context) error {
		writeErr = writer.Run(ctx)
		return writeErr
	})
	err := g.Wait()

	stats.Dropped = writer.Progress().Dropped
	if err == nil {
		return stats, nil
	}

	// The parent context wins over whatever the cancelled side reported.
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	switch {
	case scanErr != nil && !errors.Is(scanErr, context.Canceled):
		return stats, fmt.Errorf("%w: %w", ErrReportIO, scanErr)
	case writeErr != nil && !errors.Is(writeErr, context.Canceled):
		return stats, fmt.Errorf("%w: %w", ErrStoreWrite, writeErr)
	}
	return stats, err
}

// produce scans records into batches. Sending blocks while the channel is
// full, which bounds memory when the writer falls behind.
func (p *Pipeline) produce(ctx context.Context, src report.Source, out chan<- []entry.Record) (entry.Stats, error) {
	sc := report.NewScanner(src, p.opts.Separator)
	batch := make([]entry.Record, 0, p.opts.BatchSize)
	every := p.opts.ProgressEvery
	next := every

	send := func() error {
		select {
		case out <- batch:
			batch = make([]entry.Record, 0, p.opts.BatchSize)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for sc.Next() {
		batch = append(batch, sc.Record())
		if len(batch) >= p.opts.BatchSize {
			if err := send(); err != nil {
				return sc.Stats(), err
			}
		}

		if lines := sc.Stats().Lines; lines >= next {
			if err := ctx.Err(); err != nil {
				return sc.Stats(), err
			}
			p.emit(lines, fmt.Sprintf("Processed %s lines", humanize.Comma(lines)))
			next = (lines/every + 1) * every
		}
	}
	if err := sc.Err(); err != nil {
		return sc.Stats(), err
	}

	if len(batch) > 0 {
		if err := send(); err != nil {
			return sc.Stats(), err
		}
	}
	return sc.Stats(), nil
}

func (p *Pipeline) buildIndexes(ctx context.Context, database *sql.DB) error {
	p.setState(StateBuildingIndexes)
	p.emit(entry.ProgressIndexing, "Building indexes")
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := db.ApplyIndexPragmas(database, p.opts.IndexMode == IndexModeDisk, p.opts.SQLiteTmpDir); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}
	if err := db.BuildIndexes(database); err != nil {
		return fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}

	builder := rollup.NewBuilder(database)
	builder.SetProgressFunc(func(done, total int64) {
		p.log.Debug().Int64("done", done).Int64("total", total).Msg("dir stats")
	})
	if err := builder.Build(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrIndexBuild, err)
	}

	took := time.Since(start)
	metrics.RecordIndexBuild(took)
	p.log.Info().Dur("took", took).Str("mode", p.opts.IndexMode).Msg("indexes built")
	return nil
}
