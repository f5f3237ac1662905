package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display report metadata",
	Long:  `Print metadata about an index including the source report, timestamps and line statistics.`,
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	meta, err := sess.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read report metadata: %w", err)
	}

	fmt.Printf("Report Information\n")
	fmt.Printf("==================\n\n")
	fmt.Printf("Report:       %s\n", meta.ReportPath)
	fmt.Printf("Root Path:    %s\n", meta.Summary.RootPath)
	fmt.Printf("Start Time:   %s\n", meta.StartTime.Format(time.RFC3339))
	if !meta.EndTime.IsZero() {
		fmt.Printf("End Time:     %s\n", meta.EndTime.Format(time.RFC3339))
		fmt.Printf("Duration:     %s\n", meta.EndTime.Sub(meta.StartTime).Round(time.Millisecond))
	}
	fmt.Printf("\nStatistics\n")
	fmt.Printf("----------\n")
	fmt.Printf("Total Size:    %s (%s bytes)\n",
		humanize.IBytes(uint64(max(meta.Summary.TotalSizeBytes, 0))), humanize.Comma(meta.Summary.TotalSizeBytes))
	fmt.Printf("Directories:   %s\n", humanize.Comma(meta.Summary.TotalDirs))
	fmt.Printf("Files:         %s\n", humanize.Comma(meta.Summary.TotalFiles))
	fmt.Printf("Lines:         %s\n", humanize.Comma(meta.Stats.Lines))
	if meta.Stats.Malformed > 0 {
		fmt.Printf("Malformed:     %s\n", humanize.Comma(meta.Stats.Malformed))
	}
	if meta.Stats.Orphans > 0 {
		fmt.Printf("Orphans:       %s\n", humanize.Comma(meta.Stats.Orphans))
	}
	if meta.Stats.Dropped > 0 {
		fmt.Printf("Dropped:       %s\n", humanize.Comma(meta.Stats.Dropped))
	}

	return nil
}
