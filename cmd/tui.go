package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/replay/internal/shared"
	"github.com/desertthunder/replay/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal interface.
//
// Logging is redirected to a file so log lines don't fight bubbletea for
// the terminal.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	fileLogger, err := shared.NewFileLogger("./tmp/replay-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	st, err := r.openStores()
	if err != nil {
		return err
	}
	engine := r.buildEngine(st)

	model := ui.NewModel(ctx, st.users, engine)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}
