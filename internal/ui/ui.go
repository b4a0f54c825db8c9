package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/aehx/internal/chat"
	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FeedView ViewState = iota
	ChatView
)

// eventBuffer bounds the messages queued from controller callbacks.
const eventBuffer = 64

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	dash   *feed.Dashboard
	chat   *chat.Store
	events chan Msg
	open   func(url string) error

	lists       map[feed.Kind]*list.Model
	search      textinput.Model
	searching   bool
	suggestions []string

	input      textarea.Model
	transcript viewport.Model
	spinner    spinner.Model
	sending    bool

	notice notice
	width  int
	height int
	help   help.Model
	keys   keyMap
}

// NewModel creates a TUI model over a feed dashboard built from backend and
// opts, and the chat store. Controller callbacks are routed into the bubbletea
// event loop, replacing any OnChange or Notifier already set in opts.
func NewModel(ctx context.Context, backend feed.DashboardBackend, store *chat.Store, opts feed.Options) *Model {
	m := &Model{
		ctx:    ctx,
		view:   FeedView,
		chat:   store,
		events: make(chan Msg, eventBuffer),
		open:   shared.OpenBrowser,
		lists:  make(map[feed.Kind]*list.Model),
		help:   help.New(),
		keys:   newKeyMap(),
	}

	opts.OnChange = func(kind feed.Kind) { m.post(feedChangedMsg(kind)) }
	opts.Notifier = feed.NotifierFunc(func(level feed.Level, text string) { m.post(noticeMsg(level, text)) })
	m.dash = feed.NewDashboard(backend, opts)

	for _, kind := range feed.Kinds {
		l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
		l.SetShowTitle(false)
		l.SetShowHelp(false)
		l.SetFilteringEnabled(false)
		m.lists[kind] = &l
	}

	m.search = textinput.New()
	m.search.Placeholder = "search galleries"
	m.search.CharLimit = 200

	m.input = textarea.New()
	m.input.Placeholder = "Ask about your library..."
	m.input.ShowLineNumbers = false
	m.input.SetHeight(3)

	m.transcript = viewport.New(0, 0)
	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	return m
}

// Dashboard exposes the feed controllers, mainly so callers can close them on exit.
func (m *Model) Dashboard() *feed.Dashboard { return m.dash }

// post queues msg for the event loop, dropping it when the queue is full.
// Feed changes are re-read from the controllers, so a dropped one only
// delays a redraw.
func (m *Model) post(msg Msg) {
	select {
	case m.events <- msg:
	default:
	}
}

// listen waits for the next controller callback.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-m.events:
			return msg
		case <-m.ctx.Done():
			return nil
		}
	}
}

// Init loads the first page of history and recommend.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), m.warmUp(), m.spinner.Tick)
}

func (m *Model) warmUp() tea.Cmd {
	return m.run(m.dash.WarmUp)
}

// run executes fn off the event loop. Failures reach the status line through
// the event queue, so exactly one listener stays active.
func (m *Model) run(fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(m.ctx); err != nil {
			m.post(errorMsg(err))
		}
		return nil
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ChatView:
			return m.handleChatKeys(msg)
		default:
			if m.searching {
				return m.handleSearchKeys(msg)
			}
			return m.handleFeedKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgFeedChanged:
		kind := msg.data.(feed.Kind)
		m.syncList(kind)
		return m, tea.Batch(m.listen(), m.markSeen())

	case MsgNotice:
		m.notice = msg.data.(notice)
		return m, m.listen()

	case MsgSuggestions:
		m.suggestions, _ = msg.data.([]string)
		return m, m.listen()

	case MsgChatEvent:
		m.syncTranscript()
		return m, m.listen()

	case MsgChatDone:
		m.sending = false
		if err, ok := msg.data.(error); ok && err != nil {
			m.notice = notice{feed.LevelError, err.Error()}
		}
		m.syncTranscript()
		return m, nil
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	for _, l := range m.lists {
		l.SetSize(max(width-4, 10), max(height-8, 4))
	}
	m.search.Width = max(width-8, 10)
	m.input.SetWidth(max(width-4, 10))
	m.transcript.Width = max(width-4, 10)
	m.transcript.Height = max(height-m.input.Height()-6, 4)
	m.syncTranscript()
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ChatView:
		return m.renderChat()
	default:
		return m.renderFeed()
	}
}

func (m *Model) renderStatus() string {
	if m.notice.text == "" {
		return ""
	}
	return styles.notice(m.notice.level).Render(fmt.Sprintf("%s: %s", m.notice.level, m.notice.text))
}
