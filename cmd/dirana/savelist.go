package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Micos01/dir-analysis/internal/listfile"
)

var saveListCmd = &cobra.Command{
	Use:   "save-list OUT [PATH...]",
	Short: "Write paths to a list file, one per line",
	Long: `Write the given paths to OUT, one per line, replacing the file. With no
paths the lines are read from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSaveList,
}

func runSaveList(cmd *cobra.Command, args []string) error {
	out, lines := args[0], args[1:]
	if len(lines) == 0 {
		sc := bufio.NewScanner(os.Stdin)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				lines = append(lines, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("failed to read paths: %w", err)
		}
	}

	if err := listfile.Save(out, lines); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d paths to %s\n", len(lines), out)
	return nil
}
