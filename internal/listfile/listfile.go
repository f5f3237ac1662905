// Package listfile writes caller-chosen paths to a text file, one per line.
package listfile

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// A line break inside an entry would split it in two.
var lineBreaks = strings.NewReplacer("\r", " ", "\n", " ")

// Save writes lines to path, replacing any existing file. The content goes
// to a temporary file in the same directory first and is renamed into place,
// so a failed write never leaves a truncated list behind.
func Save(path string, lines []string) error {
	if path == "" {
		return fmt.Errorf("list path must not be empty")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create list file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		line = lineBreaks.Replace(line)
		if _, err := w.WriteString(line); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write list file: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write list file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write list file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close list file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set list file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to save list file: %w", err)
	}
	return nil
}
