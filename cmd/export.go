package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/aehx/internal/repositories"
	"github.com/desertthunder/aehx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ExportFeed walks the history and recommend feeds and writes them to disk.
//
// Every fetched page is also written to the local item cache.
func (r *Runner) ExportFeed(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	kinds := cmd.StringSlice("feed")
	if len(kinds) == 0 {
		kinds = []string{"history", "recommend"}
	}

	opts := tasks.ExportOpts{
		Format:    r.config.Export.Format,
		OutputDir: cmd.String("output"),
		PageSize:  r.config.Feed.PageSize,
		MaxPages:  r.config.Export.MaxPages,
		RateLimit: r.config.Export.RateLimit,
		Depth:     int(cmd.Int("depth")),
	}
	if f := cmd.String("format"); f != "" {
		opts.Format = f
	}
	if n := int(cmd.Int("pages")); n > 0 {
		opts.MaxPages = n
	}
	if rate := cmd.Float("rate"); rate > 0 {
		opts.RateLimit = rate
	}

	engine := tasks.NewEngine(r.api(), repositories.NewItemCacheAdapter(r.items), r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.logger.Info(update.Message, "phase", update.Phase)
		}
	}()

	result, err := engine.ExportFeeds(ctx, progressCh, kinds, opts)
	close(progressCh)
	<-done
	if err != nil && result == nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlainHeader("Feed export")
	for _, feed := range result.Feeds {
		if feed.Error != nil {
			r.writePlain("✗ %-10s %v\n", feed.Kind, feed.Error)
			continue
		}
		r.writePlain("✓ %-10s %d items over %d pages (%d duplicates, %d cached)\n",
			feed.Kind, feed.Items, feed.Pages, feed.Duplicates, feed.Cached)
		if feed.Truncated {
			r.writePlain("  page cap reached; raise --pages for more\n")
		}
		r.writePlain("  %s\n", feed.File)
	}
	if result.ManifestPath != "" {
		r.writePlainln("Manifest: %s", result.ManifestPath)
	}
	return err
}

// ExportChats writes chat transcripts, one file per session.
//
// With no session arguments every session known to the server is exported.
func (r *Runner) ExportChats(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	client := r.api()
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		infos, err := client.ChatSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, info := range infos {
			ids = append(ids, info.SessionID)
		}
	}
	if len(ids) == 0 {
		r.writePlain("No chat sessions to export.\n")
		return nil
	}

	src := repositories.NewSessionCache(r.sessions, client.ChatHistory)
	if cmd.Bool("offline") {
		src = repositories.NewSessionCache(r.sessions, nil)
	}

	format := cmd.String("format")
	if format == "" {
		format = r.config.Export.Format
	}

	engine := tasks.NewEngine(client, nil, r.logger)

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	manifest, manifestPath, err := engine.ExportTranscripts(ctx, progressCh, src, ids, tasks.TranscriptOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	close(progressCh)
	<-done
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	r.writePlainln("Exported %d of %d sessions (%d failed)", manifest.Successful, manifest.Total, manifest.Failed)
	r.writePlain("Manifest: %s\n", manifestPath)
	return nil
}
