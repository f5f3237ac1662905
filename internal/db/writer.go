package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Micos01/dir-analysis/internal/entry"
)

// Directories are upserted by path: a repeated path keeps its row and takes
// the later size.
const upsertDirSQL = `INSERT INTO dirs (path, size_bytes, size_str) VALUES (?, ?, ?)
ON CONFLICT(path) DO UPDATE SET size_bytes = excluded.size_bytes, size_str = excluded.size_str`

const insertFileSQL = `INSERT INTO files (name, size_bytes, size_str, parent_path) VALUES (?, ?, ?, ?)`

// CommitFunc is called after each committed batch.
type CommitFunc func(records int, took time.Duration)

// Writer drains record batches from a channel and writes each batch in a
// single transaction.
type Writer struct {
	db      *sql.DB
	batches <-chan []entry.Record
	log     zerolog.Logger
	commit  CommitFunc

	// Progress tracking (atomic)
	dirCount   int64
	fileCount  int64
	dropped    int64
	batchCount int64

	dirStmt  *sql.Stmt
	fileStmt *sql.Stmt
}

// WriterProgress holds the rows written so far.
type WriterProgress struct {
	Dirs    int64
	Files   int64
	Dropped int64
	Batches int64
}

// NewWriter creates a writer that consumes batches until the channel closes.
func NewWriter(db *sql.DB, batches <-chan []entry.Record, log zerolog.Logger) *Writer {
	return &Writer{
		db:      db,
		batches: batches,
		log:     log,
	}
}

// OnCommit registers a callback invoked after every committed batch.
func (w *Writer) OnCommit(f CommitFunc) {
	w.commit = f
}

// Run consumes batches until the channel is closed or ctx is done.
// Failing to begin or commit a transaction is fatal. A row that fails to
// insert is counted as dropped and the batch continues.
func (w *Writer) Run(ctx context.Context) error {
	var err error
	w.dirStmt, err = w.db.PrepareContext(ctx, upsertDirSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare dir statement: %w", err)
	}
	defer w.dirStmt.Close()

	w.fileStmt, err = w.db.PrepareContext(ctx, insertFileSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare file statement: %w", err)
	}
	defer w.fileStmt.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.batches:
			if !ok {
				w.log.Debug().
					Int64("batches", atomic.LoadInt64(&w.batchCount)).
					Int64("dropped", atomic.LoadInt64(&w.dropped)).
					Msg("writer drained")
				return nil
			}
			if err := w.writeBatch(ctx, batch); err != nil {
				return err
			}
		}
	}
}

func (w *Writer) writeBatch(ctx context.Context, batch []entry.Record) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	dirStmt := tx.StmtContext(ctx, w.dirStmt)
	fileStmt := tx.StmtContext(ctx, w.fileStmt)

	var dirs, files, dropped int64
	for _, r := range batch {
		switch r.Kind {
		case entry.KindDir:
			_, err = dirStmt.ExecContext(ctx, r.Path, r.SizeBytes, r.SizeStr)
			if err == nil {
				dirs++
			}
		default:
			_, err = fileStmt.ExecContext(ctx, r.Name, r.SizeBytes, r.SizeStr, r.Parent)
			if err == nil {
				files++
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				tx.Rollback()
				return ctx.Err()
			}
			dropped++
			w.log.Debug().Err(err).Int64("line", r.Line).Msg("row dropped")
		}
	}

	if err := tx.Commit(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	atomic.AddInt64(&w.dirCount, dirs)
	atomic.AddInt64(&w.fileCount, files)
	atomic.AddInt64(&w.dropped, dropped)
	n := atomic.AddInt64(&w.batchCount, 1)

	took := time.Since(start)
	w.log.Debug().Int64("batch", n).Int("records", len(batch)).Dur("took", took).Msg("batch committed")
	if w.commit != nil {
		w.commit(len(batch), took)
	}
	return nil
}

// Progress returns rows written so far (safe for concurrent access).
func (w *Writer) Progress() WriterProgress {
	return WriterProgress{
		Dirs:    atomic.LoadInt64(&w.dirCount),
		Files:   atomic.LoadInt64(&w.fileCount),
		Dropped: atomic.LoadInt64(&w.dropped),
		Batches: atomic.LoadInt64(&w.batchCount),
	}
}
