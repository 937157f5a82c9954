package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/swiper/internal/shared"
	"github.com/desertthunder/swiper/internal/ui"
	"github.com/urfave/cli/v3"
)

// Swipe launches the interactive swipe deck.
func (r *Runner) Swipe(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.store.ValidToken(ctx); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.api, shared.WithLogger(fileLogger, "component", "tui"))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
