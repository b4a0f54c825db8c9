package tasks

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/services"
)

// maxWatchedTasks bounds the snapshot kept by a [Watcher].
const maxWatchedTasks = 200

// Watcher remembers the last status of each task and reports tasks that have
// just moved into a failed or timed-out state.
type Watcher struct {
	mu    sync.Mutex
	seen  map[string]string
	tasks []models.Task
}

// NewWatcher creates an empty Watcher.
func NewWatcher() *Watcher {
	return &Watcher{seen: make(map[string]string)}
}

// Observe records a snapshot and returns the tasks whose status changed to
// failed or timeout since the previous one. A task seen for the first time
// already failed is reported too.
func (w *Watcher) Observe(snap services.TaskSnapshot) []models.Task {
	tasks := slices.Clone(snap.Tasks)
	slices.SortStableFunc(tasks, func(a, b models.Task) int {
		return cmp.Compare(b.StartedAt, a.StartedAt)
	})
	if len(tasks) > maxWatchedTasks {
		tasks = tasks[:maxWatchedTasks]
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var failed []models.Task
	for _, t := range tasks {
		if t.TaskID == "" {
			continue
		}
		prev := w.seen[t.TaskID]
		if prev != t.Status && t.Failed() {
			failed = append(failed, t)
		}
		w.seen[t.TaskID] = t.Status
	}
	w.tasks = tasks
	return failed
}

// Tasks returns the latest snapshot, newest first.
func (w *Watcher) Tasks() []models.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.tasks)
}

// WatchTasks follows the task stream until ctx ends, calling notify for every
// task that fails or times out and forwarding snapshots as progress updates.
func (e *Engine) WatchTasks(ctx context.Context, src TaskStreamer, w *Watcher, prog chan<- ProgressUpdate, notify func(models.Task)) error {
	if w == nil {
		w = NewWatcher()
	}

	err := src.WatchTasks(ctx, func(snap services.TaskSnapshot) {
		for _, t := range w.Observe(snap) {
			sendProgress(prog, taskChangedUpdate(t))
			if notify != nil {
				notify(t)
			}
		}
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
