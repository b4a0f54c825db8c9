package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/aehx/internal/feed"
	"github.com/desertthunder/aehx/internal/stream"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgFeedChanged MsgKind = iota
	MsgNotice
	MsgSuggestions
	MsgChatEvent
	MsgChatDone
)

type notice struct {
	level feed.Level
	text  string
}

// feedChangedMsg is the constructor for [MsgFeedChanged]
func feedChangedMsg(kind feed.Kind) Msg {
	return Msg{kind: MsgFeedChanged, data: kind}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(level feed.Level, text string) Msg {
	return Msg{kind: MsgNotice, data: notice{level, text}}
}

// errorMsg wraps err as an error-level [MsgNotice]
func errorMsg(err error) Msg {
	return noticeMsg(feed.LevelError, err.Error())
}

// suggestionsMsg is the constructor for [MsgSuggestions]
func suggestionsMsg(tags []string) Msg {
	return Msg{kind: MsgSuggestions, data: tags}
}

// chatEventMsg is the constructor for [MsgChatEvent]
func chatEventMsg(ev stream.Event) Msg {
	return Msg{kind: MsgChatEvent, data: ev}
}

// chatDoneMsg is the constructor for [MsgChatDone]
func chatDoneMsg(err error) Msg {
	return Msg{kind: MsgChatDone, data: err}
}
