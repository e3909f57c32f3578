package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sibila/internal/adapters/driving/tui"
)

var tuiTopK int

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for sibila.

Type a question and press Enter. Words like tribunal=TS restrict the
results by metadata. The sentence of each passage closest to the question
is highlighted.

Controls:
  ↑/k, ↓/j  - Previous / next passage
  PgUp/PgDn - Scroll the passage
  Enter     - Search / Open document
  n         - New search
  Esc       - Back
  ctrl+c    - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiTopK, "top-k", "k", 0, "results per query (default search.top_k setting)")
	rootCmd.AddCommand(tuiCmd)
}

// newTUIApp builds the TUI from the configured services. A nil topK uses
// the configured default.
func newTUIApp(topK *int) (*tui.App, error) {
	if queryService == nil {
		return nil, errors.New("query service not configured")
	}
	app, err := tui.NewApp(&tui.Ports{
		Query:     queryService,
		Documents: documentService,
		TopK:      topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	return app, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := newTUIApp(topKOption(cmd, tuiTopK))
	if err != nil {
		return err
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
