package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	minSuggestRunes = 2
	suggestLimit    = 10
	searchScope     = "both"
)

// Searcher is the part of the API behind the search tab.
type Searcher interface {
	SearchText(ctx context.Context, req models.SearchRequest) (*models.SearchResult, error)
	TagSuggest(ctx context.Context, q string, limit int, uiLang string) ([]string, error)
}

// DashboardBackend is everything the dashboard calls.
type DashboardBackend interface {
	Backend
	Searcher
}

// Dashboard groups the three feed controllers with the active tab, the search
// filters and tag suggestions.
type Dashboard struct {
	History   *Controller
	Recommend *Controller
	Search    *Controller

	searcher Searcher
	opts     Options

	mu          sync.Mutex
	active      Kind
	filters     Filters
	lastQuery   string
	suggestSeq  int
	suggestTmr  shared.Timer
	suggestions []string
}

// NewDashboard builds the controllers for all three feeds.
func NewDashboard(backend DashboardBackend, opts Options) *Dashboard {
	opts = opts.withDefaults()
	return &Dashboard{
		History:   NewController(KindHistory, backend, opts),
		Recommend: NewController(KindRecommend, backend, opts),
		Search:    NewController(KindSearch, backend, opts),
		searcher:  backend,
		opts:      opts,
		active:    KindRecommend,
		filters:   DefaultFilters(),
	}
}

// Controller returns the controller for kind.
func (d *Dashboard) Controller(kind Kind) *Controller {
	switch kind {
	case KindHistory:
		return d.History
	case KindSearch:
		return d.Search
	default:
		return d.Recommend
	}
}

// Active returns the tab currently shown.
func (d *Dashboard) Active() Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// SetActive switches tabs; the feeds keep their state.
func (d *Dashboard) SetActive(kind Kind) {
	d.mu.Lock()
	d.active = kind
	d.mu.Unlock()
}

// WarmUp loads the first page of history and recommend concurrently.
//
// The feeds are independent, so one failing does not cancel the other; the
// first error is returned once both have settled.
func (d *Dashboard) WarmUp(ctx context.Context) error {
	var g errgroup.Group
	for _, c := range []*Controller{d.History, d.Recommend} {
		g.Go(func() error { return c.LoadNext(ctx, true) })
	}
	return g.Wait()
}

// Filters returns the current search filters.
func (d *Dashboard) Filters() Filters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filters
}

// SetFilters replaces the filters and, when the search tab is showing a
// query, runs that query again.
func (d *Dashboard) SetFilters(ctx context.Context, f Filters) error {
	d.mu.Lock()
	d.filters = f
	rerun := d.active == KindSearch && d.lastQuery != ""
	query := d.lastQuery
	d.mu.Unlock()

	if !rerun {
		return nil
	}
	return d.RunSearch(ctx, query)
}

// LastQuery returns the query of the most recent search.
func (d *Dashboard) LastQuery() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastQuery
}

// RunSearch runs a text search with the current filters and shows its results on the search tab.
func (d *Dashboard) RunSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)

	d.mu.Lock()
	f := d.filters
	d.mu.Unlock()

	req := models.SearchRequest{
		Query:             query,
		Scope:             searchScope,
		Limit:             d.opts.SearchLimit,
		UseLLM:            d.opts.UseLLM,
		UILang:            d.opts.UILang,
		IncludeCategories: f.EffectiveCategories(),
		IncludeTags:       append([]string{}, f.Tags...),
	}
	if err := shared.Validate(req); err != nil {
		return err
	}

	d.mu.Lock()
	d.active = KindSearch
	d.lastQuery = query
	d.mu.Unlock()

	err := d.Search.Populate(ctx, func(ctx context.Context) ([]models.FeedItem, error) {
		res, err := d.searcher.SearchText(ctx, req)
		if err != nil {
			return nil, err
		}
		return res.Items, nil
	})
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}
	return nil
}

// SuggestTags schedules a tag suggestion lookup for input after the debounce
// window, superseding any lookup still waiting. Inputs shorter than two
// characters clear the suggestions at once. fn runs on the timer goroutine
// and only for the latest input.
func (d *Dashboard) SuggestTags(input string, fn func([]string, error)) {
	q := strings.TrimSpace(input)

	d.mu.Lock()
	d.suggestSeq++
	seq := d.suggestSeq
	if d.suggestTmr != nil {
		d.suggestTmr.Stop()
		d.suggestTmr = nil
	}
	if utf8.RuneCountInString(q) < minSuggestRunes {
		d.suggestions = nil
		d.mu.Unlock()
		if fn != nil {
			fn(nil, nil)
		}
		return
	}

	d.suggestTmr = d.opts.Clock.AfterFunc(d.opts.SuggestDebounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
		defer cancel()
		tags, err := d.searcher.TagSuggest(ctx, q, suggestLimit, d.opts.UILang)

		d.mu.Lock()
		if seq != d.suggestSeq {
			d.mu.Unlock()
			return
		}
		if err != nil {
			tags = nil
		}
		d.suggestions = tags
		d.mu.Unlock()

		if fn != nil {
			fn(tags, err)
		}
	})
	d.mu.Unlock()
}

// Suggestions returns the latest tag suggestions.
func (d *Dashboard) Suggestions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.suggestions...)
}

// Close stops pending timers and flushes feedback.
func (d *Dashboard) Close() {
	d.mu.Lock()
	if d.suggestTmr != nil {
		d.suggestTmr.Stop()
	}
	d.mu.Unlock()

	for _, c := range []*Controller{d.History, d.Recommend, d.Search} {
		c.Close()
	}
}
