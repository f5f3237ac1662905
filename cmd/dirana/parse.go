package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/session"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var parseCmd = &cobra.Command{
	Use:   "parse REPORT",
	Short: "Parse a report into a new index",
	Long: `Stream-parse a disk-usage report into a fresh SQLite index in the data
directory and make it the latest index.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var parseProgress time.Duration

func init() {
	f := parseCmd.Flags()
	f.Int("retention", 3, "Number of index files to keep (0 = unlimited)")
	f.Int("batch-size", 5000, "Records per write transaction")
	f.Int("channel-depth", 8, "Batches buffered between parser and writer")
	f.Int64("progress-every", 150000, "Emit progress every N lines")
	f.String("index-mode", "memory", "Index build mode: memory|disk")
	f.String("sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
	f.DurationVar(&parseProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")

	bindFlag("retention", f.Lookup("retention"))
	bindFlag("batch_size", f.Lookup("batch-size"))
	bindFlag("channel_depth", f.Lookup("channel-depth"))
	bindFlag("progress_every", f.Lookup("progress-every"))
	bindFlag("index_mode", f.Lookup("index-mode"))
	bindFlag("sqlite_tmp_dir", f.Lookup("sqlite-tmp-dir"))
}

func runParse(cmd *cobra.Command, args []string) error {
	reportPath := args[0]
	fmt.Printf("Parsing %s...\n", reportPath)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		os.Exit(130)
	}()
	startTime := time.Now()

	var lastCount atomic.Int64
	var lastStatus, stage atomic.Value
	lastStatus.Store("")
	stage.Store("scan")

	mgr := newManager()
	mgr.SetProgressFunc(func(count int64, status string) {
		lastCount.Store(count)
		lastStatus.Store(status)
	})
	mgr.SetStageFunc(func(s string) {
		if s != "" {
			stage.Store(s)
		}
	})

	isTTY := isTerminal()
	progressDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		lastNonTTY := time.Now()
		var spinnerIdx int
		for {
			select {
			case <-progressDone:
				return
			case <-ticker.C:
				stageStr, _ := stage.Load().(string)
				status, _ := lastStatus.Load().(string)
				count := lastCount.Load()
				elapsed := time.Since(startTime).Round(time.Millisecond)

				if isTTY {
					spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
					spinnerIdx++
					switch {
					case stageStr != "scan":
						fmt.Fprintf(os.Stderr, "\r\033[K%s %s... | %s", spinner, stageStr, elapsed)
					case count == entry.ProgressIndexing:
						fmt.Fprintf(os.Stderr, "\r\033[K%s %s... | %s", spinner, status, elapsed)
					default:
						fmt.Fprintf(os.Stderr, "\r\033[K%s Parsing... %s lines | %s/sec | %s",
							spinner, humanize.Comma(count), humanize.Comma(rate(count, elapsed)), elapsed)
					}
				} else if parseProgress > 0 && time.Since(lastNonTTY) >= parseProgress {
					if stageStr != "scan" || count == entry.ProgressIndexing {
						fmt.Fprintf(os.Stderr, "PROGRESS stage=%s status=%q elapsed=%s\n", stageStr, status, elapsed)
					} else {
						fmt.Fprintf(os.Stderr, "PROGRESS lines=%d rate=%d/sec elapsed=%s\n",
							count, rate(count, elapsed), elapsed)
					}
					lastNonTTY = time.Now()
				}
			}
		}
	}()

	sess := session.New(mgr, cfg.SeparatorByte(), log)
	defer sess.Close()
	summary, err := sess.Parse(ctx, reportPath)
	close(progressDone)

	if isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Parse canceled.")
			return nil
		}
		return fmt.Errorf("parse failed: %w", err)
	}

	fmt.Printf("Parse completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Root: %s\n", summary.RootPath)
	fmt.Printf("  Total size: %s\n", humanize.IBytes(uint64(max(summary.TotalSizeBytes, 0))))
	fmt.Printf("  Directories: %s\n", humanize.Comma(summary.TotalDirs))
	fmt.Printf("  Files: %s\n", humanize.Comma(summary.TotalFiles))

	if meta, err := sess.Meta(ctx); err == nil {
		printSkipped(meta.Stats)
	}
	return nil
}

func printSkipped(s entry.Stats) {
	if s.Malformed > 0 {
		fmt.Printf("  Malformed lines: %s\n", humanize.Comma(s.Malformed))
	}
	if s.Orphans > 0 {
		fmt.Printf("  Orphan files: %s\n", humanize.Comma(s.Orphans))
	}
	if s.Dropped > 0 {
		fmt.Printf("  Dropped rows: %s\n", humanize.Comma(s.Dropped))
	}
}

func rate(count int64, elapsed time.Duration) int64 {
	if elapsed <= 0 || count <= 0 {
		return 0
	}
	return int64(float64(count) / elapsed.Seconds())
}

func isTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
