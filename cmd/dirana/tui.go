package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Micos01/dir-analysis/internal/listfile"
	"github.com/Micos01/dir-analysis/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse an index interactively",
	Long: `Open an interactive TUI to browse the report tree, list the largest files
and search by name. Marked paths can be written to a list file.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

var tuiListFile string

func init() {
	tuiCmd.Flags().StringVarP(&tuiListFile, "list-file", "o", "dirana-list.txt", "File the 'w' key writes marked paths to")
}

func runTUI(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer sess.Close()

	model := tui.NewModel(sess, cfg.SeparatorByte())
	model.SetListFile(tuiListFile, listfile.Save)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
