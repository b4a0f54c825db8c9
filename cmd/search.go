package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SearchText runs a text search through the search feed, applying category and tag filters.
func (r *Runner) SearchText(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	opts := feed.OptionsFromConfig(r.config)
	opts.Logger = r.logger
	if n := int(cmd.Int("limit")); n > 0 {
		opts.SearchLimit = n
	}
	if cmd.Bool("llm") {
		opts.UseLLM = true
	}

	dash := feed.NewDashboard(r.api(), opts)
	defer dash.Close()

	filters := feed.DefaultFilters()
	if categories := cmd.StringSlice("category"); len(categories) > 0 {
		filters = feed.Filters{}
		for _, key := range categories {
			if _, ok := feed.CategoryByKey(key); !ok {
				return fmt.Errorf("%w: unknown category %q", shared.ErrInvalidFlag, key)
			}
			filters = filters.ToggleCategory(key)
		}
	}
	for _, t := range cmd.StringSlice("tag") {
		if !filters.HasTag(t) {
			filters = filters.ToggleTag(t)
		}
	}

	if err := dash.SetFilters(ctx, filters); err != nil {
		return err
	}
	if err := dash.RunSearch(ctx, query); err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	items := dash.Search.State().Items
	if cmd.Bool("cache") {
		r.cacheItems(feed.KindSearch.String(), items)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	r.writeItems(items)
	return nil
}

// SearchTags prints tag completions for a partial input.
func (r *Runner) SearchTags(ctx context.Context, cmd *cli.Command) error {
	input := strings.TrimSpace(cmd.StringArg("input"))
	if input == "" {
		return fmt.Errorf("%w: tag prefix", shared.ErrMissingArgument)
	}

	tags, err := r.api().TagSuggest(ctx, input, int(cmd.Int("limit")), r.config.Server.UILang)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tags, cmd.Bool("pretty"))
	}
	for _, tag := range tags {
		r.writePlain("%s\n", tag)
	}
	return nil
}
