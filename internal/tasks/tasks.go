// package tasks implements the long-running client operations: feed export, transcript export and task watching.
//
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/services"
)

// FeedSource fetches feed pages.
type FeedSource interface {
	History(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error)
	Recommend(ctx context.Context, q models.FeedQuery) (*models.FeedPage, error)
}

// ItemCacher stores fetched items; the export keeps going when it fails.
type ItemCacher interface {
	CacheItems(kind string, items []models.FeedItem) (int, error)
}

// TranscriptSource loads a chat transcript.
type TranscriptSource interface {
	Transcript(ctx context.Context, id string) (*models.ChatSession, error)
}

// TaskStreamer delivers task table snapshots until ctx ends.
type TaskStreamer interface {
	WatchTasks(ctx context.Context, fn func(services.TaskSnapshot)) error
}

// Engine runs export and watch operations against the API.
type Engine struct {
	feeds  FeedSource
	cache  ItemCacher
	logger *log.Logger
}

// NewEngine creates an Engine. cache may be nil to skip caching.
func NewEngine(feeds FeedSource, cache ItemCacher, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{feeds: feeds, cache: cache, logger: logger}
}

func (e *Engine) fetch(ctx context.Context, kind string, q models.FeedQuery) (*models.FeedPage, error) {
	switch kind {
	case "history":
		return e.feeds.History(ctx, q)
	case "recommend":
		return e.feeds.Recommend(ctx, q)
	default:
		return nil, fmt.Errorf("feed %q cannot be exported", kind)
	}
}
