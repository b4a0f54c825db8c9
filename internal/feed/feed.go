package feed

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// Kind names one of the three feeds.
type Kind string

const (
	KindHistory   Kind = "history"
	KindRecommend Kind = "recommend"
	KindSearch    Kind = "search"
)

// Kinds lists the feeds in tab order.
var Kinds = []Kind{KindRecommend, KindHistory, KindSearch}

// ParseKind accepts a feed name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Kinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown feed %q", shared.ErrInvalidArgument, s)
}

func (k Kind) String() string { return string(k) }

const (
	defaultPageSize           = 24
	defaultMaxDepth           = 8
	defaultDislikeDelay       = 450 * time.Millisecond
	minDislikeDelay           = 150 * time.Millisecond
	maxDislikeDelay           = 1500 * time.Millisecond
	defaultImpressionDebounce = 2 * time.Second
	defaultTouchDedupe        = 1500 * time.Millisecond
	defaultSuggestDebounce    = 250 * time.Millisecond
	feedbackTimeout           = 10 * time.Second
	feedbackWeight            = 1.0
)

// State is the pagination state of one feed.
type State struct {
	Items   []models.FeedItem
	Cursor  string
	HasMore bool
	Loading bool
	Error   string
}

// Expansion is the recommend-only depth state.
type Expansion struct {
	Depth         int
	CanExpandMore bool
	JitterNonce   int
}

// Backend is the part of the API the feed controllers call.
type Backend interface {
	History(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error)
	Recommend(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error)
	Impressions(ctx context.Context, items []models.ItemRef, weight float64) error
	Dislike(ctx context.Context, ref models.ItemRef, weight float64) error
	TouchKeepalive(ctx context.Context, ref models.ItemRef, weight float64) error
}

// Level grades a user notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(level Level, msg string)

func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

// LogNotifier reports notifications through a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(level Level, msg string) {
	l := n.Logger
	if l == nil {
		l = log.Default()
	}
	switch level {
	case LevelWarning:
		l.Warn(msg)
	case LevelError:
		l.Error(msg)
	default:
		l.Info(msg)
	}
}

// Options tunes a controller. Zero values take the defaults.
type Options struct {
	PageSize           int
	MaxDepth           int
	DislikeDelay       time.Duration
	ImpressionDebounce time.Duration
	TouchDedupe        time.Duration
	SuggestDebounce    time.Duration
	SearchLimit        int
	UseLLM             bool
	UILang             string

	Clock    shared.Clock
	Notifier Notifier
	Logger   *log.Logger

	// OnChange is called without locks held after any state change, including
	// those made by timers.
	OnChange func(kind Kind)
}

// OptionsFromConfig maps the [feed] and [server] config sections onto Options.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		PageSize:           cfg.Feed.PageSize,
		MaxDepth:           cfg.Feed.MaxDepth,
		DislikeDelay:       cfg.Feed.DislikeDelay(),
		ImpressionDebounce: cfg.Feed.ImpressionDebounce(),
		TouchDedupe:        cfg.Feed.TouchDedupe(),
		SearchLimit:        cfg.Feed.SearchLimit,
		UseLLM:             cfg.Feed.UseLLM,
		UILang:             cfg.Server.UILang,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	if o.DislikeDelay <= 0 {
		o.DislikeDelay = defaultDislikeDelay
	}
	if o.ImpressionDebounce <= 0 {
		o.ImpressionDebounce = defaultImpressionDebounce
	}
	if o.TouchDedupe <= 0 {
		o.TouchDedupe = defaultTouchDedupe
	}
	if o.SuggestDebounce <= 0 {
		o.SuggestDebounce = defaultSuggestDebounce
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 48
	}
	if o.Clock == nil {
		o.Clock = shared.SystemClock()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	if o.Notifier == nil {
		o.Notifier = LogNotifier{Logger: o.Logger}
	}
	return o
}

// ClampDislikeDelay bounds the delay before a disliked item is removed.
func ClampDislikeDelay(d time.Duration) time.Duration {
	if d <= 0 {
		d = defaultDislikeDelay
	}
	return min(max(d, minDislikeDelay), maxDislikeDelay)
}
