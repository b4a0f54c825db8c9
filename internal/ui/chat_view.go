package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/stream"
)

const bubbleIndent = "  "

// renderTranscript lays out messages for a viewport of the given width,
// wrapping text by display cells.
func renderTranscript(messages []models.ChatMessage, width int) string {
	if len(messages) == 0 {
		return styles.help.Render("No messages yet. Type below and press enter.")
	}

	wrap := max(width-len(bubbleIndent), 10)
	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		label := styles.assistant.Render("assistant")
		if msg.Role == "user" {
			label = styles.user.Render("you")
		}
		if msg.Time != "" {
			label += " " + styles.help.Render(msg.Time)
		}
		b.WriteString(label)
		b.WriteString("\n")

		text := ansi.Wrap(msg.Text, wrap, "")
		for j, line := range strings.Split(text, "\n") {
			if j > 0 {
				b.WriteString("\n")
			}
			b.WriteString(bubbleIndent + line)
		}

		if stats := statsLine(msg.Stats); stats != "" {
			b.WriteString("\n" + bubbleIndent + styles.help.Render(stats))
		}
	}
	return b.String()
}

// statsLine summarizes a message's stats object as key=value pairs.
func statsLine(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var stats map[string]any
	if err := json.Unmarshal(raw, &stats); err != nil || len(stats) == 0 {
		return ""
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, stats[k])
	}
	return strings.Join(parts, " ")
}

// lastAssistant returns the index of the last assistant message, or -1.
func lastAssistant(messages []models.ChatMessage) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			return i
		}
	}
	return -1
}

func (m *Model) syncTranscript() {
	sess, err := m.chat.Session(m.chat.Current())
	if err != nil {
		return
	}
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(renderTranscript(sess.Messages, m.transcript.Width))
	if atBottom || m.sending {
		m.transcript.GotoBottom()
	}
}

// streamTo runs a chat send on a command goroutine, posting every stream
// event so the transcript redraws as deltas arrive.
func (m *Model) streamTo(send func(ctx context.Context, on func(stream.Event)) error) tea.Cmd {
	m.sending = true
	return func() tea.Msg {
		err := send(m.ctx, func(ev stream.Event) { m.post(chatEventMsg(ev)) })
		return chatDoneMsg(err)
	}
}

func (m *Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.back):
		m.view = FeedView
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.newChat):
		if m.sending {
			return m, nil
		}
		m.chat.NewSession()
		m.syncTranscript()
		return m, nil

	case key.Matches(msg, m.keys.regen):
		id := m.chat.Current()
		sess, err := m.chat.Session(id)
		if err != nil || m.sending {
			return m, nil
		}
		idx := lastAssistant(sess.Messages)
		if idx < 0 {
			return m, nil
		}
		return m, m.streamTo(func(ctx context.Context, on func(stream.Event)) error {
			return m.chat.Regenerate(ctx, id, idx, on)
		})

	case key.Matches(msg, m.keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.sending {
			return m, nil
		}
		m.input.Reset()
		id := m.chat.Current()
		cmd := m.streamTo(func(ctx context.Context, on func(stream.Event)) error {
			return m.chat.Send(ctx, id, text, on)
		})
		m.syncTranscript()
		return m, cmd

	case msg.Type == tea.KeyPgUp || msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) renderChat() string {
	id := m.chat.Current()
	title := id
	if sess, err := m.chat.Session(id); err == nil {
		title = sess.Title
	}

	header := styles.title.Render(ansi.Truncate(title, max(m.width-4, 10), "…"))
	if m.sending {
		header += " " + m.spinner.View()
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.transcript.View())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if status := m.renderStatus(); status != "" {
		b.WriteString(status + "\n")
	}
	b.WriteString(m.help.ShortHelpView(m.keys.chatHelp()))
	return b.String()
}
