package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

const feedbackWeight = 1.0

// FeedList walks the history or recommend feed through a controller and prints its items.
func (r *Runner) FeedList(ctx context.Context, cmd *cli.Command) error {
	kind, err := feed.ParseKind(cmd.Name)
	if err != nil {
		return err
	}

	opts := feed.OptionsFromConfig(r.config)
	opts.Logger = r.logger
	if n := cmd.Int("limit"); n > 0 {
		opts.PageSize = int(n)
	}

	c := feed.NewController(kind, r.api(), opts)
	defer c.Close()

	if kind == feed.KindRecommend && cmd.Bool("shuffle") {
		err = c.Shuffle(ctx)
	} else {
		err = c.Refresh(ctx)
	}
	if err != nil {
		return err
	}

	pages := max(int(cmd.Int("pages")), 1)
	for i := 1; i < pages; i++ {
		before := len(c.State().Items)
		if err := c.LoadNext(ctx, false); err != nil {
			return err
		}
		if len(c.State().Items) == before && !c.State().HasMore {
			break
		}
	}

	st := c.State()
	if kind == feed.KindRecommend && cmd.Bool("mark-seen") {
		for _, it := range st.Items {
			c.Seen(it)
		}
	}

	if cmd.Bool("cache") {
		r.cacheItems(kind.String(), st.Items)
	}

	if cmd.Bool("json") {
		return r.writeJSON(st.Items, cmd.Bool("pretty"))
	}

	r.writeItems(st.Items)
	switch {
	case kind == feed.KindRecommend && c.Expansion().Depth > 1:
		r.writePlainln("depth %d, %d items", c.Expansion().Depth, len(st.Items))
	case st.HasMore:
		r.writePlainln("more available, next cursor %q", st.Cursor)
	default:
		r.writePlainln("end of feed, %d items", len(st.Items))
	}
	return nil
}

// FeedDislike sends negative feedback for a gallery and flags it in the cache.
func (r *Runner) FeedDislike(ctx context.Context, cmd *cli.Command) error {
	item, err := r.lookupItem(cmd)
	if err != nil {
		return err
	}

	if err := r.api().Dislike(ctx, item.Ref(), cmd.Float("weight")); err != nil {
		return fmt.Errorf("dislike failed: %w", err)
	}

	if err := r.items.MarkDisliked(item.Key()); err != nil && !errors.Is(err, shared.ErrItemNotFound) {
		r.logger.Warn("failed to flag cached item", "key", item.Key(), "error", err)
	}

	r.writePlain("✓ Disliked %s\n", item.Key())
	return nil
}

// FeedOpen records a touch for a gallery and opens it in the browser.
func (r *Runner) FeedOpen(ctx context.Context, cmd *cli.Command) error {
	item, err := r.lookupItem(cmd)
	if err != nil {
		return err
	}

	if err := r.api().TouchKeepalive(ctx, item.Ref(), feedbackWeight); err != nil {
		r.logger.Warn("touch failed", "key", item.Key(), "error", err)
	}

	url := item.URL()
	if cmd.Bool("print") {
		return r.writePlain("%s\n", url)
	}
	if err := shared.OpenBrowser(url); err != nil {
		r.writePlain("Open this URL in your browser:\n%s\n", url)
		return nil
	}
	r.writePlain("✓ Opened %s\n", url)
	return nil
}

// FeedClearTouches forgets every recorded open.
func (r *Runner) FeedClearTouches(ctx context.Context, cmd *cli.Command) error {
	if err := r.api().ClearTouches(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Touch history cleared\n")
	return nil
}

// FeedResetProfile clears the learned recommend profile.
func (r *Runner) FeedResetProfile(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to reset the recommend profile", shared.ErrMissingArgument)
	}
	if err := r.api().ResetProfile(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Recommend profile reset\n")
	return nil
}

// lookupItem resolves the gid and token arguments, preferring the cached copy
// so links and source are preserved.
func (r *Runner) lookupItem(cmd *cli.Command) (models.FeedItem, error) {
	gid, err := strconv.ParseInt(cmd.StringArg("gid"), 10, 64)
	if err != nil || gid <= 0 {
		return models.FeedItem{}, fmt.Errorf("%w: gid must be a positive integer", shared.ErrInvalidArgument)
	}
	token := strings.TrimSpace(cmd.StringArg("token"))
	if token == "" {
		return models.FeedItem{}, fmt.Errorf("%w: token", shared.ErrMissingArgument)
	}

	if err := r.openDB(); err != nil {
		return models.FeedItem{}, err
	}
	if cached, err := r.items.Get(shared.ItemKey(gid, token)); err == nil {
		return cached.Item, nil
	}

	return models.FeedItem{
		Source: models.SourceEHWorks,
		GID:    gid,
		Token:  token,
		EHURL:  fmt.Sprintf("https://e-hentai.org/g/%d/%s/", gid, token),
	}, nil
}

// cacheItems stores items in the local cache, logging failures.
func (r *Runner) cacheItems(kind string, items []models.FeedItem) {
	if err := r.openDB(); err != nil {
		r.logger.Warn("cache unavailable", "error", err)
		return
	}
	n, err := r.items.Upsert(kind, items)
	if err != nil {
		r.logger.Warn("failed to cache items", "kind", kind, "error", err)
		return
	}
	r.logger.Debug("cached items", "kind", kind, "count", n)
}

func (r *Runner) writeItems(items []models.FeedItem) {
	if len(items) == 0 {
		r.writePlain("No items.\n")
		return
	}
	for i, it := range items {
		r.writePlain("%3d. %s\n", i+1, shared.Truncate(it.Title, 96))
		meta := []string{it.Key()}
		if it.Category != "" {
			meta = append(meta, it.Category)
		}
		if tags := it.DisplayTags(); len(tags) > 0 {
			meta = append(meta, strings.Join(tags[:min(len(tags), 4)], ", "))
		}
		r.writePlain("     %s\n", strings.Join(meta, " • "))
	}
}
