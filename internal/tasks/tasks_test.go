package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/formatter"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/services"
	th "github.com/desertthunder/aehx/internal/testing"
)

type mockFeeds struct {
	mu      sync.Mutex
	pages   map[string][]*models.FeedPage
	errs    map[string]error
	queries map[string][]models.FeedQuery
}

func newMockFeeds() *mockFeeds {
	return &mockFeeds{
		pages:   make(map[string][]*models.FeedPage),
		errs:    make(map[string]error),
		queries: make(map[string][]models.FeedQuery),
	}
}

func (m *mockFeeds) page(kind string, q models.FeedQuery) (*models.FeedPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[kind] = append(m.queries[kind], q)
	if err := m.errs[kind]; err != nil {
		return nil, err
	}
	n := len(m.queries[kind]) - 1
	if n >= len(m.pages[kind]) {
		return &models.FeedPage{}, nil
	}
	return m.pages[kind][n], nil
}

func (m *mockFeeds) History(_ context.Context, q models.FeedQuery) (*models.FeedPage, error) {
	return m.page("history", q)
}

func (m *mockFeeds) Recommend(_ context.Context, q models.FeedQuery) (*models.FeedPage, error) {
	return m.page("recommend", q)
}

type mockCache struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *mockCache) CacheItems(kind string, items []models.FeedItem) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[kind] += len(items)
	return len(items), nil
}

func items(prefix string, gids ...int64) []models.FeedItem {
	out := make([]models.FeedItem, len(gids))
	for i, gid := range gids {
		out[i] = models.FeedItem{
			ID:     fmt.Sprintf("%s-%d", prefix, gid),
			Source: models.SourceEHWorks,
			GID:    gid,
			Token:  fmt.Sprintf("t%d", gid),
			Title:  fmt.Sprintf("%s %d", prefix, gid),
		}
	}
	return out
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestExportFeeds(t *testing.T) {
	ctx := context.Background()

	t.Run("walks until has_more is false", func(t *testing.T) {
		feeds := newMockFeeds()
		feeds.pages["history"] = []*models.FeedPage{
			{Items: items("h", 1, 2), NextCursor: "c1", HasMore: true},
			{Items: items("h", 2, 3), NextCursor: "c2", HasMore: true},
			{Items: items("h", 4), HasMore: false},
		}
		cache := &mockCache{}
		engine := NewEngine(feeds, cache, quietLogger())
		dir := t.TempDir()

		prog := make(chan ProgressUpdate, 100)
		run, err := engine.ExportFeeds(ctx, prog, []string{"history"}, ExportOpts{Format: "json", OutputDir: dir, RateLimit: 1000})
		if err != nil {
			t.Fatalf("ExportFeeds failed: %v", err)
		}

		res := run.Feeds[0]
		if res.Error != nil {
			t.Fatalf("unexpected feed error: %v", res.Error)
		}
		if res.Pages != 3 || res.Items != 4 || res.Duplicates != 1 || res.Truncated {
			t.Errorf("unexpected result %+v", res)
		}
		if res.Cached != 4 || cache.calls["history"] != 4 {
			t.Errorf("expected 4 cached items, got %d / %v", res.Cached, cache.calls)
		}

		cursors := []string{}
		for _, q := range feeds.queries["history"] {
			cursors = append(cursors, q.Cursor)
			if q.Limit != 24 {
				t.Errorf("expected default page size, got %d", q.Limit)
			}
		}
		if strings.Join(cursors, ",") != ",c1,c2" {
			t.Errorf("unexpected cursors %v", cursors)
		}

		var export formatter.FeedExport
		if err := json.Unmarshal([]byte(th.MustReadFile(t, res.File)), &export); err != nil {
			t.Fatalf("export is not valid JSON: %v", err)
		}
		if len(export.Items) != 4 || export.Pages != 3 {
			t.Errorf("unexpected export contents: %d items, %d pages", len(export.Items), export.Pages)
		}

		th.AssertFileExists(t, filepath.Join(dir, "export_manifest.json"))
		if run.ManifestPath == "" {
			t.Error("ManifestPath should not be empty")
		}

		close(prog)
		phases := map[Phase]int{}
		for u := range prog {
			phases[u.Phase]++
		}
		if phases[FetchPage] != 6 || phases[CacheItems] != 3 || phases[WriteFiles] != 1 {
			t.Errorf("unexpected progress phases %v", phases)
		}
	})

	t.Run("stops at the page cap", func(t *testing.T) {
		feeds := newMockFeeds()
		for i := range 5 {
			feeds.pages["recommend"] = append(feeds.pages["recommend"], &models.FeedPage{
				Items: items("r", int64(i+1)), NextCursor: fmt.Sprintf("c%d", i+1), HasMore: true,
			})
		}
		engine := NewEngine(feeds, nil, quietLogger())

		run, err := engine.ExportFeeds(ctx, nil, []string{"recommend"}, ExportOpts{
			Format: "csv", OutputDir: t.TempDir(), MaxPages: 2, RateLimit: 1000, Depth: 3,
		})
		if err != nil {
			t.Fatal(err)
		}
		res := run.Feeds[0]
		if res.Pages != 2 || !res.Truncated || res.Cached != 0 {
			t.Errorf("unexpected result %+v", res)
		}
		if len(feeds.queries["recommend"]) != 2 || feeds.queries["recommend"][0].Depth != 3 {
			t.Errorf("unexpected queries %+v", feeds.queries["recommend"])
		}
		if filepath.Ext(res.File) != ".csv" {
			t.Errorf("expected csv file, got %s", res.File)
		}
	})

	t.Run("one failing feed does not stop the other", func(t *testing.T) {
		feeds := newMockFeeds()
		feeds.errs["recommend"] = errors.New("backend offline")
		feeds.pages["history"] = []*models.FeedPage{{Items: items("h", 1)}}
		dir := t.TempDir()

		run, err := NewEngine(feeds, nil, quietLogger()).ExportFeeds(ctx, nil, []string{"history", "recommend"}, ExportOpts{
			Format: "markdown", OutputDir: dir, RateLimit: 1000,
		})
		if err != nil {
			t.Fatal(err)
		}
		if run.Feeds[0].Error != nil || run.Feeds[1].Error == nil {
			t.Fatalf("unexpected results %+v", run.Feeds)
		}

		var manifest formatter.ExportManifest
		if err := json.Unmarshal([]byte(th.MustReadFile(t, run.ManifestPath)), &manifest); err != nil {
			t.Fatal(err)
		}
		if manifest.Successful != 1 || manifest.Failed != 1 || manifest.Format != "markdown" {
			t.Errorf("unexpected manifest %+v", manifest)
		}
	})

	t.Run("cache failures are not fatal", func(t *testing.T) {
		feeds := newMockFeeds()
		feeds.pages["history"] = []*models.FeedPage{{Items: items("h", 1)}}
		run, err := NewEngine(feeds, &mockCache{err: errors.New("disk full")}, quietLogger()).
			ExportFeeds(ctx, nil, []string{"history"}, ExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if err != nil || run.Feeds[0].Error != nil {
			t.Fatalf("expected success, got %v / %v", err, run.Feeds[0].Error)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := NewEngine(newMockFeeds(), nil, nil).ExportFeeds(ctx, nil, []string{"history"}, ExportOpts{Format: "xml"})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown feed", func(t *testing.T) {
		run, err := NewEngine(newMockFeeds(), nil, quietLogger()).ExportFeeds(ctx, nil, []string{"search"}, ExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if err != nil {
			t.Fatal(err)
		}
		if run.Feeds[0].Error == nil {
			t.Error("search feed should not be exportable")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewEngine(newMockFeeds(), nil, quietLogger()).ExportFeeds(cctx, nil, []string{"history"}, ExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

type mockTranscripts map[string]*models.ChatSession

func (m mockTranscripts) Transcript(_ context.Context, id string) (*models.ChatSession, error) {
	s, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

func TestExportTranscripts(t *testing.T) {
	src := mockTranscripts{}
	var ids []string
	for i := range 6 {
		id := fmt.Sprintf("s%d", i)
		ids = append(ids, id)
		src[id] = &models.ChatSession{
			SessionID: id,
			Title:     "chat " + id,
			Messages:  []models.ChatMessage{{Role: "user", Text: "hi"}, {Role: "assistant", Text: "hello"}},
		}
	}
	ids = append(ids, "missing")

	dir := t.TempDir()
	prog := make(chan ProgressUpdate, 50)
	manifest, path, err := NewEngine(nil, nil, quietLogger()).ExportTranscripts(context.Background(), prog, src, ids, TranscriptOpts{
		Format: "txt", OutputDir: dir, NumWorkers: 3,
	})
	if err != nil {
		t.Fatalf("ExportTranscripts failed: %v", err)
	}

	if manifest.Total != 7 || manifest.Successful != 6 || manifest.Failed != 1 {
		t.Errorf("unexpected manifest %+v", manifest)
	}
	th.AssertFileExists(t, path)
	for _, id := range ids[:6] {
		th.AssertFileExists(t, filepath.Join(dir, id+".txt"))
	}
	if _, err := os.Stat(filepath.Join(dir, "missing.txt")); !os.IsNotExist(err) {
		t.Error("no file expected for a missing session")
	}

	close(prog)
	count := 0
	for u := range prog {
		if u.Phase != ExportTranscript || u.Total != 7 {
			t.Errorf("unexpected update %+v", u)
		}
		count++
	}
	if count != 7 {
		t.Errorf("expected 7 updates, got %d", count)
	}
}

type mockStream struct {
	snapshots []services.TaskSnapshot
	err       error
}

func (m mockStream) WatchTasks(ctx context.Context, fn func(services.TaskSnapshot)) error {
	for _, s := range m.snapshots {
		fn(s)
	}
	if m.err != nil {
		return m.err
	}
	return ctx.Err()
}

func TestWatcher(t *testing.T) {
	snap := func(tasks ...models.Task) services.TaskSnapshot { return services.TaskSnapshot{Tasks: tasks} }
	task := func(id, status, started string) models.Task {
		return models.Task{TaskID: id, Task: "crawl", Status: status, StartedAt: started}
	}

	t.Run("reports transitions into failure once", func(t *testing.T) {
		w := NewWatcher()
		if got := w.Observe(snap(task("a", "running", "1"))); len(got) != 0 {
			t.Errorf("running task should not be reported: %v", got)
		}
		if got := w.Observe(snap(task("a", "failed", "1"))); len(got) != 1 {
			t.Fatalf("expected failure reported, got %v", got)
		}
		if got := w.Observe(snap(task("a", "failed", "1"))); len(got) != 0 {
			t.Errorf("unchanged failure must not repeat: %v", got)
		}
		if got := w.Observe(snap(task("b", "timeout", "2"), task("", "failed", "3"))); len(got) != 1 || got[0].TaskID != "b" {
			t.Errorf("expected first-seen timeout reported, got %v", got)
		}
	})

	t.Run("keeps newest first", func(t *testing.T) {
		w := NewWatcher()
		w.Observe(snap(task("old", "done", "2024-01-01"), task("new", "running", "2024-02-01")))
		got := w.Tasks()
		if len(got) != 2 || got[0].TaskID != "new" {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("watch tasks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src := mockStream{snapshots: []services.TaskSnapshot{
			snap(task("a", "running", "1")),
			snap(models.Task{TaskID: "a", Task: "crawl", Status: "failed", Error: "boom", StartedAt: "1"}),
		}}

		var notified []models.Task
		prog := make(chan ProgressUpdate, 10)
		err := NewEngine(nil, nil, quietLogger()).WatchTasks(ctx, src, nil, prog, func(t models.Task) { notified = append(notified, t) })
		if err != nil {
			t.Fatalf("cancellation should end the watch cleanly, got %v", err)
		}
		if len(notified) != 1 || notified[0].Error != "boom" {
			t.Errorf("unexpected notifications %v", notified)
		}
		u := <-prog
		if u.Phase != TaskChanged || !strings.Contains(u.Message, "crawl (a) is failed: boom") {
			t.Errorf("unexpected update %+v", u)
		}

		src.err = errors.New("stream broke")
		if err := NewEngine(nil, nil, quietLogger()).WatchTasks(context.Background(), src, nil, nil, nil); err == nil {
			t.Error("expected stream error")
		}
	})
}
