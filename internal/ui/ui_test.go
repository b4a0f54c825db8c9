package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/desertthunder/aehx/internal/chat"
	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/services"
	"github.com/desertthunder/aehx/internal/stream"
	tu "github.com/desertthunder/aehx/internal/testing"
)

// fakeAPI serves both the feed dashboard and the chat store.
type fakeAPI struct {
	mu        sync.Mutex
	history   []models.FeedItem
	recommend []models.FeedItem
	dislikes  []models.ItemRef
	touches   []models.ItemRef
	searches  []models.SearchRequest
	chatReqs  []models.ChatRequest
	reply     []stream.Event
}

func (f *fakeAPI) History(context.Context, models.FeedQuery) (*models.FeedPage, error) {
	return &models.FeedPage{Items: f.history}, nil
}

func (f *fakeAPI) Recommend(context.Context, models.FeedQuery) (*models.FeedPage, error) {
	return &models.FeedPage{Items: f.recommend}, nil
}

func (f *fakeAPI) Impressions(context.Context, []models.ItemRef, float64) error { return nil }

func (f *fakeAPI) Dislike(_ context.Context, ref models.ItemRef, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dislikes = append(f.dislikes, ref)
	return nil
}

func (f *fakeAPI) TouchKeepalive(_ context.Context, ref models.ItemRef, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, ref)
	return nil
}

func (f *fakeAPI) SearchText(_ context.Context, req models.SearchRequest) (*models.SearchResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, req)
	f.mu.Unlock()
	return &models.SearchResult{Items: galleries("found", 1)}, nil
}

func (f *fakeAPI) TagSuggest(context.Context, string, int, string) ([]string, error) {
	return []string{"female:glasses"}, nil
}

func (f *fakeAPI) StreamChat(_ context.Context, req models.ChatRequest, fn func(stream.Event)) error {
	f.mu.Lock()
	f.chatReqs = append(f.chatReqs, req)
	f.mu.Unlock()
	for _, ev := range f.reply {
		fn(ev)
	}
	return nil
}

func (f *fakeAPI) SendMessage(context.Context, models.ChatRequest) (*models.ChatReply, error) {
	return &models.ChatReply{}, nil
}

func (f *fakeAPI) ChatHistory(context.Context, string) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeAPI) ChatSessions(context.Context) ([]models.ChatSessionInfo, error) { return nil, nil }

func (f *fakeAPI) EditMessage(context.Context, services.EditRequest) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteMessage(context.Context, string, int) ([]models.ChatMessage, error) {
	return nil, nil
}

func (f *fakeAPI) DeleteSession(context.Context, string) error { return nil }

func galleries(prefix string, n int) []models.FeedItem {
	items := make([]models.FeedItem, n)
	for i := range items {
		gid := int64(i + 1)
		items[i] = models.FeedItem{
			ID:     fmt.Sprintf("%s-%d", prefix, gid),
			Source: models.SourceEHWorks,
			GID:    gid,
			Token:  fmt.Sprintf("%s%d", prefix, gid),
			Title:  fmt.Sprintf("%s gallery %d", prefix, gid),
			EHURL:  fmt.Sprintf("https://e-hentai.org/g/%d/%s%d/", gid, prefix, gid),
		}
	}
	return items
}

func newTestModel(t *testing.T) (*Model, *fakeAPI, *tu.FakeClock) {
	t.Helper()
	api := &fakeAPI{history: galleries("h", 2), recommend: galleries("r", 3)}
	clock := tu.NewFakeClock()
	logger := log.New(io.Discard)

	store := chat.NewStore(api, chat.Options{Clock: clock, Logger: logger})
	m := NewModel(context.Background(), api, store, feed.Options{Clock: clock, Logger: logger})
	m.open = func(string) error { return nil }
	m.resize(100, 40)
	t.Cleanup(m.dash.Close)
	return m, api, clock
}

// drain feeds every queued controller callback into Update.
func drain(m *Model) {
	for {
		select {
		case msg := <-m.events:
			m.Update(msg)
		default:
			return
		}
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestFeedItem(t *testing.T) {
	item := models.FeedItem{
		Title:    strings.Repeat("long title ", 20),
		Category: "Manga",
		Source:   models.SourceEHWorks,
		Tags:     []string{"a", "b", "c", "d", "e"},
	}

	t.Run("Title truncates to the display width", func(t *testing.T) {
		got := feedItem{item: item}.Title()
		if ansi.StringWidth(got) > titleWidth {
			t.Errorf("title is %d cells wide", ansi.StringWidth(got))
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})

	t.Run("Title marks disliked items", func(t *testing.T) {
		if got := (feedItem{item: models.FeedItem{Title: "x"}, disliked: true}).Title(); got != "✗ x" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Description caps tags", func(t *testing.T) {
		want := "Manga • eh_works • a, b, c, d"
		if got := (feedItem{item: item}).Description(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("Description prefers translated tags", func(t *testing.T) {
		it := models.FeedItem{Tags: []string{"female:glasses"}, TagsTranslated: []string{"眼鏡"}}
		if got := (feedItem{item: it}).Description(); got != "眼鏡" {
			t.Errorf("got %q", got)
		}
	})
}

func TestFeedFooter(t *testing.T) {
	tests := []struct {
		name string
		kind feed.Kind
		st   feed.State
		exp  feed.Expansion
		want string
	}{
		{"loading", feed.KindHistory, feed.State{Loading: true}, feed.Expansion{}, "loading…"},
		{"error", feed.KindHistory, feed.State{Error: "boom"}, feed.Expansion{}, "error: boom"},
		{"depth", feed.KindRecommend, feed.State{HasMore: true}, feed.Expansion{Depth: 3}, "depth 3"},
		{"exhausted", feed.KindHistory, feed.State{Items: galleries("h", 1)}, feed.Expansion{}, "end of feed"},
		{"search never ends", feed.KindSearch, feed.State{Items: galleries("s", 1)}, feed.Expansion{}, ""},
		{"empty", feed.KindHistory, feed.State{}, feed.Expansion{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := feedFooter(tt.kind, tt.st, tt.exp); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderTranscript(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if got := renderTranscript(nil, 40); !strings.Contains(got, "No messages yet") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("wraps by display width", func(t *testing.T) {
		msgs := []models.ChatMessage{
			{Role: "user", Text: "おすすめの作品を教えてください。できれば眼鏡のキャラクターが出てくるもの。"},
			{Role: "assistant", Text: strings.Repeat("word ", 30), Stats: json.RawMessage(`{"tokens":42,"model":"m"}`)},
		}
		got := ansi.Strip(renderTranscript(msgs, 30))
		for _, line := range strings.Split(got, "\n") {
			if w := ansi.StringWidth(line); w > 30 {
				t.Errorf("line %q is %d cells wide", line, w)
			}
		}
		if !strings.Contains(got, "model=m tokens=42") {
			t.Errorf("expected sorted stats line in %q", got)
		}
	})

	t.Run("statsLine ignores junk", func(t *testing.T) {
		for _, raw := range []string{"", "null", "[]", "{}"} {
			if got := statsLine(json.RawMessage(raw)); got != "" {
				t.Errorf("statsLine(%q) = %q", raw, got)
			}
		}
	})

	t.Run("lastAssistant", func(t *testing.T) {
		msgs := []models.ChatMessage{{Role: "user"}, {Role: "assistant"}, {Role: "user"}}
		if got := lastAssistant(msgs); got != 1 {
			t.Errorf("got %d", got)
		}
		if got := lastAssistant(msgs[:1]); got != -1 {
			t.Errorf("got %d", got)
		}
	})
}

func TestModel(t *testing.T) {
	t.Run("warm up fills both feeds", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		m.warmUp()()
		drain(m)

		if n := len(m.lists[feed.KindRecommend].Items()); n != 3 {
			t.Errorf("expected 3 recommend items, got %d", n)
		}
		if n := len(m.lists[feed.KindHistory].Items()); n != 2 {
			t.Errorf("expected 2 history items, got %d", n)
		}
		if m.dash.Recommend.PendingImpressions() == 0 {
			t.Error("visible recommend items should be queued as impressions")
		}
		if !strings.Contains(ansi.Strip(m.View()), "Recommend (3)") {
			t.Errorf("tabs should show counts:\n%s", m.View())
		}
	})

	t.Run("tab cycles feeds", func(t *testing.T) {
		m, _, _ := newTestModel(t)
		want := []feed.Kind{feed.KindHistory, feed.KindSearch, feed.KindRecommend}
		for _, kind := range want {
			m.Update(tea.KeyMsg{Type: tea.KeyTab})
			if m.dash.Active() != kind {
				t.Fatalf("expected %s, got %s", kind, m.dash.Active())
			}
		}
		m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
		if m.dash.Active() != feed.KindSearch {
			t.Errorf("shift+tab should go back, got %s", m.dash.Active())
		}
	})

	t.Run("dislike removes the item after the delay", func(t *testing.T) {
		m, api, clock := newTestModel(t)
		m.warmUp()()
		drain(m)

		_, cmd := m.Update(runes("x"))
		if cmd == nil {
			t.Fatal("expected a dislike command")
		}
		cmd()
		drain(m)

		if len(api.dislikes) != 1 || api.dislikes[0].GID != 1 {
			t.Fatalf("unexpected dislikes %+v", api.dislikes)
		}
		if title := m.lists[feed.KindRecommend].Items()[0].(feedItem).Title(); !strings.HasPrefix(title, "✗") {
			t.Errorf("item should be flagged while pending, got %q", title)
		}
		if m.notice.level != feed.LevelInfo {
			t.Errorf("expected an info notice, got %+v", m.notice)
		}

		clock.Advance(450 * time.Millisecond)
		drain(m)
		if n := len(m.lists[feed.KindRecommend].Items()); n != 2 {
			t.Errorf("expected item removed, %d left", n)
		}
	})

	t.Run("dislike outside recommend only warns", func(t *testing.T) {
		m, api, _ := newTestModel(t)
		m.warmUp()()
		drain(m)

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.dash.Active() != feed.KindHistory {
			t.Fatalf("expected history tab, got %s", m.dash.Active())
		}
		if _, cmd := m.Update(runes("x")); cmd != nil {
			t.Error("no dislike command expected on the history tab")
		}
		if len(api.dislikes) != 0 {
			t.Errorf("unexpected dislikes %+v", api.dislikes)
		}
		if m.notice.level != feed.LevelWarning {
			t.Errorf("expected a warning notice, got %+v", m.notice)
		}
	})

	t.Run("open touches and launches the browser", func(t *testing.T) {
		m, api, _ := newTestModel(t)
		m.warmUp()()
		drain(m)

		var opened []string
		m.open = func(url string) error {
			opened = append(opened, url)
			return nil
		}
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.dash.Close()

		if len(opened) != 1 || opened[0] != "https://e-hentai.org/g/1/r1/" {
			t.Errorf("unexpected opens %v", opened)
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		if len(api.touches) != 1 {
			t.Errorf("expected one touch, got %d", len(api.touches))
		}
	})

	t.Run("search input runs a search", func(t *testing.T) {
		m, api, _ := newTestModel(t)
		m.Update(runes("/"))
		if !m.searching || m.dash.Active() != feed.KindSearch {
			t.Fatal("slash should focus the search box")
		}

		m.search.SetValue("glasses")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.searching {
			t.Error("enter should leave the search box")
		}
		cmd()
		drain(m)

		if len(api.searches) != 1 || api.searches[0].Query != "glasses" {
			t.Fatalf("unexpected searches %+v", api.searches)
		}
		if n := len(m.lists[feed.KindSearch].Items()); n != 1 {
			t.Errorf("expected 1 result, got %d", n)
		}
	})

	t.Run("chat send streams into the transcript", func(t *testing.T) {
		m, api, _ := newTestModel(t)
		api.reply = []stream.Event{
			{Kind: stream.EventDelta, Delta: "Try "},
			{Kind: stream.EventDelta, Delta: "these galleries."},
			{Kind: stream.EventDone},
		}

		m.Update(runes("c"))
		if m.view != ChatView {
			t.Fatal("c should open the chat view")
		}

		m.input.SetValue("any suggestions?")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if !m.sending {
			t.Error("model should be sending")
		}
		done := cmd()
		drain(m)
		m.Update(done)

		if m.sending {
			t.Error("sending should clear once the stream ends")
		}
		view := ansi.Strip(m.transcript.View())
		if !strings.Contains(view, "any suggestions?") || !strings.Contains(view, "Try these galleries.") {
			t.Errorf("unexpected transcript:\n%s", view)
		}
		if len(api.chatReqs) != 1 || api.chatReqs[0].Text != "any suggestions?" {
			t.Errorf("unexpected requests %+v", api.chatReqs)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != FeedView {
			t.Error("esc should return to the feeds")
		}
	})

	t.Run("blank chat input is ignored", func(t *testing.T) {
		m, api, _ := newTestModel(t)
		m.Update(runes("c"))
		m.input.SetValue("   ")
		if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil || m.sending {
			t.Error("blank input should not send")
		}
		if len(api.chatReqs) != 0 {
			t.Error("no request expected")
		}
	})
}
