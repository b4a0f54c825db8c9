package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// batcher coalesces impressions by item key and sends them once the queue has
// been quiet for the debounce window.
type batcher struct {
	clock  shared.Clock
	window time.Duration
	send   func(ctx context.Context, items []models.ItemRef) error
	logger *log.Logger

	mu      sync.Mutex
	pending map[string]models.ItemRef
	timer   shared.Timer
}

func newBatcher(clock shared.Clock, window time.Duration, logger *log.Logger, send func(context.Context, []models.ItemRef) error) *batcher {
	return &batcher{
		clock:   clock,
		window:  window,
		send:    send,
		logger:  logger,
		pending: make(map[string]models.ItemRef),
	}
}

// Add queues ref under key. Only a new key restarts the debounce window.
func (b *batcher) Add(key string, ref models.ItemRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.pending[key]; ok {
		return false
	}
	b.pending[key] = ref

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = b.clock.AfterFunc(b.window, b.Flush)
	return true
}

// Len returns the number of queued impressions.
func (b *batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush drains the queue and sends it as one batch.
//
// The queue is emptied before the request goes out, so impressions added
// while it is in flight start the next batch. Send errors are logged only.
func (b *batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}

	keys := make([]string, 0, len(b.pending))
	for k := range b.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	items := make([]models.ItemRef, 0, len(keys))
	for _, k := range keys {
		items = append(items, b.pending[k])
	}
	b.pending = make(map[string]models.ItemRef)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), feedbackTimeout)
	defer cancel()
	if err := b.send(ctx, items); err != nil {
		b.logger.Debug("impression flush failed", "items", len(items), "error", err)
		return
	}
	b.logger.Debug("impressions sent", "items", len(items))
}
