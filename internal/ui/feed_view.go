package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/models"
)

const (
	titleWidth   = 96
	shownTags    = 4
	loadAheadRow = 3
)

var _ list.DefaultItem = feedItem{}

// feedItem wraps [models.FeedItem] to implement [list.DefaultItem].
type feedItem struct {
	item     models.FeedItem
	disliked bool
}

func (i feedItem) FilterValue() string { return i.item.Title }

func (i feedItem) Title() string {
	title := ansi.Truncate(i.item.Title, titleWidth, "…")
	if i.disliked {
		return "✗ " + title
	}
	return title
}

func (i feedItem) Description() string {
	parts := []string{}
	if i.item.Category != "" {
		parts = append(parts, i.item.Category)
	}
	if i.item.Source != "" {
		parts = append(parts, i.item.Source)
	}
	if tags := i.item.DisplayTags(); len(tags) > 0 {
		parts = append(parts, strings.Join(tags[:min(len(tags), shownTags)], ", "))
	}
	return strings.Join(parts, " • ")
}

// syncList copies a controller's items into its list, keeping the cursor.
func (m *Model) syncList(kind feed.Kind) {
	c := m.dash.Controller(kind)
	st := c.State()

	items := make([]list.Item, len(st.Items))
	for i, it := range st.Items {
		items[i] = feedItem{item: it, disliked: c.IsDisliked(it)}
	}

	l := m.lists[kind]
	idx := l.Index()
	l.SetItems(items)
	if idx < len(items) {
		l.Select(idx)
	}
}

func (m *Model) activeList() *list.Model {
	return m.lists[m.dash.Active()]
}

func (m *Model) selected() (models.FeedItem, bool) {
	it, ok := m.activeList().SelectedItem().(feedItem)
	return it.item, ok
}

// markSeen reports the recommend items on the visible page as impressions.
func (m *Model) markSeen() tea.Cmd {
	if m.dash.Active() != feed.KindRecommend || m.view != FeedView {
		return nil
	}
	l := m.lists[feed.KindRecommend]
	items := l.Items()
	start, end := l.Paginator.GetSliceBounds(len(items))
	for _, it := range items[start:end] {
		if fi, ok := it.(feedItem); ok {
			m.dash.Recommend.Seen(fi.item)
		}
	}
	return nil
}

// loadMore fetches the next page once the cursor nears the end of the list.
func (m *Model) loadMore() tea.Cmd {
	kind := m.dash.Active()
	if kind == feed.KindSearch {
		return nil
	}
	c := m.dash.Controller(kind)
	st := c.State()
	if st.Loading || st.Error != "" {
		return nil
	}
	if !st.HasMore && !(kind == feed.KindRecommend && c.Expansion().CanExpandMore) {
		return nil
	}
	l := m.lists[kind]
	if len(l.Items()) > 0 && l.Index() < len(l.Items())-loadAheadRow {
		return nil
	}
	return m.run(func(ctx context.Context) error { return c.LoadNext(ctx, false) })
}

func (m *Model) switchTab(step int) {
	i := slices.Index(feed.Kinds, m.dash.Active())
	n := len(feed.Kinds)
	next := feed.Kinds[((i+step)%n+n)%n]
	m.dash.SetActive(next)
	m.syncList(next)
}

func (m *Model) handleFeedKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.nextTab):
		m.switchTab(1)
		return m, tea.Batch(m.markSeen(), m.loadMore())

	case key.Matches(msg, m.keys.prevTab):
		m.switchTab(-1)
		return m, tea.Batch(m.markSeen(), m.loadMore())

	case key.Matches(msg, m.keys.open):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.dash.Controller(m.dash.Active()).Touch(m.ctx, item)
		if err := m.open(item.URL()); err != nil {
			m.notice = notice{feed.LevelWarning, err.Error()}
		}
		return m, nil

	case key.Matches(msg, m.keys.dislike):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.dash.Active() != feed.KindRecommend {
			m.notice = notice{feed.LevelWarning, "not interested applies to recommendations only"}
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			// failures are already reported by the controller's notifier
			_ = m.dash.Recommend.Dislike(ctx, item, 0)
			return nil
		})

	case key.Matches(msg, m.keys.refresh):
		if m.dash.Active() == feed.KindSearch {
			if q := m.dash.LastQuery(); q != "" {
				return m, m.run(func(ctx context.Context) error { return m.dash.RunSearch(ctx, q) })
			}
			return m, nil
		}
		c := m.dash.Controller(m.dash.Active())
		return m, m.run(c.Refresh)

	case key.Matches(msg, m.keys.shuffle):
		if m.dash.Active() != feed.KindRecommend {
			return m, nil
		}
		return m, m.run(m.dash.Recommend.Shuffle)

	case key.Matches(msg, m.keys.search):
		m.dash.SetActive(feed.KindSearch)
		m.syncList(feed.KindSearch)
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.chat):
		m.view = ChatView
		m.syncTranscript()
		return m, m.input.Focus()
	}

	var cmd tea.Cmd
	l := m.activeList()
	*l, cmd = l.Update(msg)
	return m, tea.Batch(cmd, m.markSeen(), m.loadMore())
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.suggestions = nil
		m.search.Blur()
		return m, nil

	case tea.KeyEnter:
		q := m.search.Value()
		m.searching = false
		m.suggestions = nil
		m.search.Blur()
		return m, m.run(func(ctx context.Context) error { return m.dash.RunSearch(ctx, q) })

	case tea.KeyTab:
		if len(m.suggestions) == 0 {
			return m, nil
		}
		f := m.dash.Filters().ToggleTag(m.suggestions[0])
		m.search.SetValue("")
		m.suggestions = nil
		return m, m.run(func(ctx context.Context) error { return m.dash.SetFilters(ctx, f) })
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.dash.SuggestTags(m.search.Value(), func(tags []string, err error) {
		if err == nil {
			m.post(suggestionsMsg(tags))
		}
	})
	return m, cmd
}

func (m *Model) renderTabs() string {
	tabs := make([]string, 0, len(feed.Kinds))
	for _, kind := range feed.Kinds {
		label := strings.ToUpper(kind.String()[:1]) + kind.String()[1:]
		st := m.dash.Controller(kind).State()
		if len(st.Items) > 0 {
			label = fmt.Sprintf("%s (%d)", label, len(st.Items))
		}
		if kind == m.dash.Active() {
			tabs = append(tabs, styles.activeTab.Render(label))
		} else {
			tabs = append(tabs, styles.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// feedFooter describes loading and exhaustion for the active feed.
func feedFooter(kind feed.Kind, st feed.State, exp feed.Expansion) string {
	switch {
	case st.Loading:
		return "loading…"
	case st.Error != "":
		return "error: " + st.Error
	case kind == feed.KindRecommend && exp.Depth > 1:
		return fmt.Sprintf("depth %d", exp.Depth)
	case kind != feed.KindSearch && !st.HasMore && len(st.Items) > 0:
		return "end of feed"
	default:
		return ""
	}
}

func (m *Model) renderFeed() string {
	kind := m.dash.Active()
	c := m.dash.Controller(kind)

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if kind == feed.KindSearch {
		b.WriteString(m.search.View())
		if tags := m.dash.Filters().Tags; len(tags) > 0 {
			b.WriteString("  " + styles.help.Render("tags: "+strings.Join(tags, ", ")))
		}
		if len(m.suggestions) > 0 {
			b.WriteString("\n" + styles.help.Render("tab adds: "+strings.Join(m.suggestions, " · ")))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.activeList().View())
	b.WriteString("\n")
	if footer := feedFooter(kind, c.State(), c.Expansion()); footer != "" {
		b.WriteString(styles.help.Render(footer) + "\n")
	}
	if status := m.renderStatus(); status != "" {
		b.WriteString(status + "\n")
	}

	helpKeys := m.keys.feedHelp()
	if m.searching {
		helpKeys = m.keys.searchHelp()
	}
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}
