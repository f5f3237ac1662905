package rollup

import (
	"context"
	"database/sql"
	"fmt"
)

// Builder fills dir_stats with the direct file count and file bytes of every
// directory that owns files. Reported directory sizes already include
// descendants, so only direct children are aggregated.
type Builder struct {
	db       *sql.DB
	progress ProgressFunc
}

// ProgressFunc reports rollup progress.
type ProgressFunc func(done, total int64)

// NewBuilder creates a new rollup builder.
func NewBuilder(db *sql.DB) *Builder {
	return &Builder{db: db}
}

// SetProgressFunc sets a callback for rollup progress updates.
func (b *Builder) SetProgressFunc(f ProgressFunc) {
	b.progress = f
}

// Build aggregates the files table in one grouped pass. It expects the
// parent index to exist so the GROUP BY walks it in order.
//
// File sizes are saturated at math.MaxInt64 by the parser, so two of them
// under one parent would overflow SUM. TOTAL never overflows; its result is
// clamped back into int64 range.
func (b *Builder) Build(ctx context.Context) error {
	var total int64
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dirs`).Scan(&total); err != nil {
		return fmt.Errorf("failed to count directories: %w", err)
	}
	if b.progress != nil {
		b.progress(0, total)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dir_stats`); err != nil {
		return fmt.Errorf("failed to clear dir stats: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO dir_stats (path, file_count, file_bytes)
		SELECT parent_path, COUNT(*),
			CASE WHEN TOTAL(size_bytes) >= 9223372036854775807.0
				THEN 9223372036854775807
				ELSE CAST(TOTAL(size_bytes) AS INTEGER)
			END
		FROM files
		GROUP BY parent_path
	`)
	if err != nil {
		return fmt.Errorf("failed to build dir stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dir stats: %w", err)
	}

	if b.progress != nil {
		n, _ := res.RowsAffected()
		b.progress(n, total)
	}
	return nil
}
