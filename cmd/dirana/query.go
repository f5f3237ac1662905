package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/pathutil"
)

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List the immediate children of a directory",
	Long:  `List the subdirectories and files directly under PATH (default: the report root) for scripting.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the largest files",
	Args:  cobra.NoArgs,
	RunE:  runTop,
}

var searchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Find files whose name or directory contains TERM",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var (
	lsSort      string
	lsLimit     int
	topLimit    int
	searchLimit int
)

func init() {
	lsCmd.Flags().StringVarP(&lsSort, "sort", "s", "size", "Sort by: size, name")
	lsCmd.Flags().IntVarP(&lsLimit, "limit", "n", 0, "Maximum number of rows (0 = all)")
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 20, "Number of files")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 100, "Maximum number of results")
}

func runLs(cmd *cobra.Command, args []string) error {
	switch lsSort {
	case "size", "name":
	default:
		return fmt.Errorf("invalid sort %q (expected size|name)", lsSort)
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	content, err := sess.DirectoryContent(ctx, path, lsSort)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	sep := cfg.SeparatorByte()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIZE\tREPORTED\tFILES\tNAME\n")
	n := 0
	for _, d := range content.Directories {
		if lsLimit > 0 && n >= lsLimit {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%c\n",
			humanize.IBytes(uint64(max(d.SizeBytes, 0))),
			d.SizeStr,
			humanize.Comma(d.FileCount),
			pathutil.Base(d.Path, sep), sep,
		)
		n++
	}
	for _, f := range content.Files {
		if lsLimit > 0 && n >= lsLimit {
			break
		}
		fmt.Fprintf(w, "%s\t%s\t-\t%s\n", humanize.IBytes(uint64(max(f.SizeBytes, 0))), f.SizeStr, f.Name)
		n++
	}
	return w.Flush()
}

func runTop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	files, err := sess.TopFiles(ctx, topLimit)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printFiles(files)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	files, err := sess.SearchFiles(ctx, args[0], searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printFiles(files)
}

func printFiles(files []entry.File) error {
	sep := string(cfg.SeparatorByte())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIZE\tREPORTED\tPATH\n")
	for _, f := range files {
		path := f.Name
		if f.ParentPath != "" {
			path = f.ParentPath + sep + f.Name
			if f.ParentPath[len(f.ParentPath)-1] == sep[0] {
				path = f.ParentPath + f.Name
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.IBytes(uint64(max(f.SizeBytes, 0))), f.SizeStr, path)
	}
	return w.Flush()
}
