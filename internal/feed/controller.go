package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// Controller owns the pagination state of one feed.
//
// Loads for one controller never overlap: a load requested while another is
// in flight is dropped. The recommend controller also tracks depth expansion,
// queued impressions, disliked items and touch timestamps.
type Controller struct {
	kind    Kind
	backend Backend
	opts    Options

	mu       sync.Mutex
	state    State
	exp      Expansion
	gen      int
	reload   bool
	disliked map[string]bool
	observed map[string]struct{}
	touched  map[string]time.Time

	impressions *batcher
	inflight    sync.WaitGroup
}

// NewController creates a controller for kind in its reset state.
func NewController(kind Kind, backend Backend, opts Options) *Controller {
	opts = opts.withDefaults()
	c := &Controller{
		kind:     kind,
		backend:  backend,
		opts:     opts,
		disliked: make(map[string]bool),
		observed: make(map[string]struct{}),
		touched:  make(map[string]time.Time),
	}
	c.resetLocked()

	if kind == KindRecommend {
		logger := shared.WithLogger(opts.Logger, "feed", string(kind))
		c.impressions = newBatcher(opts.Clock, opts.ImpressionDebounce, logger, func(ctx context.Context, items []models.ItemRef) error {
			return backend.Impressions(ctx, items, feedbackWeight)
		})
	}
	return c
}

// Kind returns the feed this controller serves.
func (c *Controller) Kind() Kind { return c.kind }

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Items = slices.Clone(c.state.Items)
	return s
}

// Expansion returns the recommend depth state.
func (c *Controller) Expansion() Expansion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exp
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.kind)
	}
}

func (c *Controller) resetLocked() {
	c.gen++
	c.state = State{HasMore: c.kind != KindSearch}
	if c.kind == KindRecommend {
		c.exp.Depth = 1
		c.exp.CanExpandMore = true
		clear(c.disliked)
		clear(c.observed)
	}
}

// Reset clears items and cursor and, for recommend, returns to depth 1 after
// flushing queued impressions. Calling it twice is the same as calling it once.
//
// A load in flight when Reset runs has its page discarded on arrival and is
// followed by a fresh first-page load, so a Refresh or Shuffle issued during
// it still reaches the backend.
func (c *Controller) Reset() {
	c.mu.Lock()
	loading := c.state.Loading
	c.resetLocked()
	c.state.Loading = loading
	c.reload = loading
	c.mu.Unlock()

	if c.impressions != nil {
		c.impressions.Flush()
	}
	c.changed()
}

// Refresh resets the feed and loads its first page.
func (c *Controller) Refresh(ctx context.Context) error {
	c.Reset()
	return c.LoadNext(ctx, true)
}

// Shuffle asks the backend for a freshly jittered recommend batch.
func (c *Controller) Shuffle(ctx context.Context) error {
	if c.kind != KindRecommend {
		return fmt.Errorf("%w: shuffle applies to the recommend feed", shared.ErrUnsupported)
	}
	c.mu.Lock()
	c.exp.JitterNonce++
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// expandLocked advances the recommend depth by one.
//
// It reports false when expansion is disabled, and disables it for good
// (until reset) once the next depth would pass the cap.
func (c *Controller) expandLocked() (int, bool) {
	if c.kind != KindRecommend || !c.exp.CanExpandMore {
		return 0, false
	}
	next := c.exp.Depth + 1
	if next > c.opts.MaxDepth {
		c.exp.CanExpandMore = false
		return 0, false
	}
	c.exp.Depth = next
	return next, true
}

func (c *Controller) queryLocked(reset bool) models.FeedQuery {
	q := models.FeedQuery{Limit: c.opts.PageSize}
	if !reset && c.state.Cursor != "" {
		q.Cursor = c.state.Cursor
	}
	if c.kind == KindRecommend {
		q.Depth = c.exp.Depth
		q.Jitter = c.exp.JitterNonce > 0
		q.JitterNonce = c.exp.JitterNonce
	}
	return q
}

func (c *Controller) fetch(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error) {
	switch c.kind {
	case KindHistory:
		return c.backend.History(ctx, q)
	case KindRecommend:
		return c.backend.Recommend(ctx, q)
	default:
		return nil, fmt.Errorf("%w: %s feed is not paginated", shared.ErrUnsupported, c.kind)
	}
}

// LoadNext fetches the next page, or the first page when reset is true.
//
// It is a no-op while a load is in flight and for the search feed. When the
// feed is exhausted, the recommend feed tries to expand its depth and reload
// from the first page; other feeds do nothing. A failed load records the
// error in the state, leaves HasMore untouched, and returns it.
func (c *Controller) LoadNext(ctx context.Context, reset bool) error {
	c.mu.Lock()
	if c.kind == KindSearch || c.state.Loading {
		c.mu.Unlock()
		return nil
	}

	expandedTo := 0
	if !reset && !c.state.HasMore {
		depth, ok := c.expandLocked()
		if !ok {
			c.mu.Unlock()
			return nil
		}
		expandedTo, reset = depth, true
	}

	q := c.queryLocked(reset)
	c.state.Loading = true
	c.state.Error = ""
	gen := c.gen
	c.mu.Unlock()

	if expandedTo > 0 {
		c.opts.Notifier.Notify(LevelInfo, fmt.Sprintf("expanding recommendations to depth %d", expandedTo))
	}
	c.changed()

	page, err := c.fetch(ctx, q)

	c.mu.Lock()
	c.state.Loading = false
	stale := gen != c.gen
	reload := stale && c.reload
	c.reload = false
	switch {
	case stale:
	case err != nil:
		c.state.Error = err.Error()
	default:
		if reset {
			c.state.Items = slices.Clone(page.Items)
		} else {
			c.state.Items = append(c.state.Items, page.Items...)
		}
		c.state.Cursor = page.NextCursor
		c.state.HasMore = page.HasMore
		if c.kind == KindRecommend {
			c.exp.CanExpandMore = page.Meta.CanExpandMore
		}
	}
	c.mu.Unlock()
	c.changed()

	if reload {
		return c.LoadNext(ctx, true)
	}
	if err != nil && !stale {
		return fmt.Errorf("load %s feed: %w", c.kind, err)
	}
	return nil
}

// Populate replaces the items with the result of fn under the loading guard.
//
// The search feed uses it: results are not paginated, so HasMore ends false.
func (c *Controller) Populate(ctx context.Context, fn func(context.Context) ([]models.FeedItem, error)) error {
	c.mu.Lock()
	if c.state.Loading {
		c.mu.Unlock()
		return shared.ErrBusy
	}
	c.state.Loading = true
	c.state.Error = ""
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.changed()

	items, err := fn(ctx)

	c.mu.Lock()
	c.state.Loading = false
	c.reload = false
	if gen == c.gen {
		if err != nil {
			c.state.Error = err.Error()
		} else {
			c.state.Items = slices.Clone(items)
			c.state.Cursor = ""
			c.state.HasMore = false
		}
	}
	c.mu.Unlock()
	c.changed()
	return err
}

// Seen queues an impression for a recommend item the user has been shown.
//
// Each item counts once per reset; only eh_works items are tracked.
func (c *Controller) Seen(item models.FeedItem) bool {
	if c.impressions == nil || !item.IsEHWork() {
		return false
	}
	key := item.Key()

	c.mu.Lock()
	if _, ok := c.observed[key]; ok {
		c.mu.Unlock()
		return false
	}
	c.observed[key] = struct{}{}
	c.mu.Unlock()

	return c.impressions.Add(key, item.Ref())
}

// PendingImpressions returns the number of impressions waiting to be flushed.
func (c *Controller) PendingImpressions() int {
	if c.impressions == nil {
		return 0
	}
	return c.impressions.Len()
}

// IsDisliked reports whether item is flagged while its dislike is pending removal.
func (c *Controller) IsDisliked(item models.FeedItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disliked[item.Key()]
}

func (c *Controller) setDisliked(key string, on bool) {
	c.mu.Lock()
	if on {
		c.disliked[key] = true
	} else {
		delete(c.disliked, key)
	}
	c.mu.Unlock()
	c.changed()
}

// Dislike sends negative feedback for a recommend item.
//
// The item is flagged at once. When the request succeeds every item with the
// same key is removed after delay (clamped to 150ms..1.5s) and the flag is
// cleared; when it fails the flag is cleared, the item stays, and the error
// is both shown to the user and returned.
func (c *Controller) Dislike(ctx context.Context, item models.FeedItem, delay time.Duration) error {
	if c.kind != KindRecommend {
		return fmt.Errorf("%w: dislike applies to the recommend feed", shared.ErrUnsupported)
	}
	if !item.IsEHWork() {
		return fmt.Errorf("%w: only gallery items with a gid and token take feedback", shared.ErrInvalidInput)
	}
	if delay <= 0 {
		delay = c.opts.DislikeDelay
	}
	delay = ClampDislikeDelay(delay)
	key := item.Key()

	c.setDisliked(key, true)

	if err := c.backend.Dislike(ctx, item.Ref(), feedbackWeight); err != nil {
		c.setDisliked(key, false)
		c.opts.Notifier.Notify(LevelWarning, err.Error())
		return err
	}

	c.opts.Clock.AfterFunc(delay, func() { c.remove(key) })
	c.opts.Notifier.Notify(LevelInfo, "marked as not interested")
	return nil
}

func (c *Controller) remove(key string) {
	c.mu.Lock()
	c.state.Items = slices.DeleteFunc(c.state.Items, func(it models.FeedItem) bool {
		return it.Key() == key
	})
	delete(c.disliked, key)
	c.mu.Unlock()
	c.changed()
}

// Touch records that the user opened item, at most once per dedupe window per key.
//
// The request runs in the background on a context detached from ctx, so it
// outlives the caller; [Controller.Close] waits for it.
func (c *Controller) Touch(ctx context.Context, item models.FeedItem) bool {
	if !item.IsEHWork() {
		return false
	}
	key := item.Key()
	now := c.opts.Clock.Now()

	c.mu.Lock()
	if prev, ok := c.touched[key]; ok && now.Sub(prev) < c.opts.TouchDedupe {
		c.mu.Unlock()
		return false
	}
	c.touched[key] = now
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ref := item.Ref()
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		tctx, cancel := context.WithTimeout(detached, feedbackTimeout)
		defer cancel()
		if err := c.backend.TouchKeepalive(tctx, ref, feedbackWeight); err != nil {
			c.opts.Logger.Debug("touch failed", "key", key, "error", err)
		}
	}()
	return true
}

// Close flushes queued impressions and waits for background touches.
func (c *Controller) Close() {
	if c.impressions != nil {
		c.impressions.Flush()
	}
	c.inflight.Wait()
}
