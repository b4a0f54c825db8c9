package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheItems lists cached gallery items, most recently seen first.
func (r *Runner) CacheItems(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	criteria := map[string]any{
		"kind":     cmd.String("kind"),
		"category": cmd.String("category"),
		"limit":    int(cmd.Int("limit")),
	}
	if cmd.Bool("disliked") {
		criteria["disliked"] = true
	}

	cached, err := r.items.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(cached, cmd.Bool("pretty"))
	}
	if len(cached) == 0 {
		r.writePlain("Cache is empty.\n")
		return nil
	}
	for _, c := range cached {
		mark := " "
		if c.Disliked {
			mark = "✗"
		}
		r.writePlain("%s %-10s %-24s %s\n", mark, c.Kind, c.Item.Key(), shared.Truncate(c.Item.Title, 72))
	}
	return nil
}

// CacheSessions lists cached chat sessions.
func (r *Runner) CacheSessions(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	sessions, err := r.sessions.List(map[string]any{"limit": int(cmd.Int("limit"))})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(sessions, cmd.Bool("pretty"))
	}
	if len(sessions) == 0 {
		r.writePlain("No cached sessions.\n")
		return nil
	}
	for _, s := range sessions {
		r.writePlain("%-24s %3d messages  %s  %s\n",
			s.SessionID, len(s.Messages), s.Updated.Local().Format("2006-01-02 15:04"), s.Title)
	}
	return nil
}

// CacheStats prints the number of cached items per feed.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	counts, err := r.items.Count()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(counts, cmd.Bool("pretty"))
	}

	kinds := make([]string, 0, len(counts))
	total := 0
	for kind, n := range counts {
		kinds = append(kinds, kind)
		total += n
	}
	slices.Sort(kinds)

	r.writePlainHeader(fmt.Sprintf("Cache: %s", r.config.Database.Path))
	for _, kind := range kinds {
		r.writePlain("%-10s %d\n", kind, counts[kind])
	}
	r.writePlain("%-10s %d\n", "total", total)
	return nil
}

// CacheClear removes cached items, optionally for one feed only.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.openDB(); err != nil {
		return err
	}

	kind := cmd.String("kind")
	n, err := r.items.Clear(kind)
	if err != nil {
		return err
	}
	if kind == "" {
		kind = "all feeds"
	}
	r.writePlain("✓ Removed %d cached items (%s)\n", n, kind)
	return nil
}
