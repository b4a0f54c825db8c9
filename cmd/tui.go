package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/desertthunder/aehx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI with the feed tabs and chat.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := r.config.Log.File
	if logPath == "" {
		logPath = "./tmp/aehx-tui.log"
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.config.Log.LogLevel())
	r.SetLogger(fileLogger)

	client := r.api()
	if status, err := client.Bootstrap(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	} else if !status.Authenticated {
		return fmt.Errorf("%w: run 'aehx auth login' first", shared.ErrNotAuthenticated)
	}

	store, err := r.chatStore("", "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := feed.OptionsFromConfig(r.config)
	opts.Logger = fileLogger

	model := ui.NewModel(ctx, client, store, opts)
	defer model.Dashboard().Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
