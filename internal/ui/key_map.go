package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	nextTab key.Binding
	prevTab key.Binding
	open    key.Binding
	dislike key.Binding
	refresh key.Binding
	shuffle key.Binding
	search  key.Binding
	chat    key.Binding
	send    key.Binding
	newChat key.Binding
	regen   key.Binding
	back    key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		nextTab: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next feed")),
		prevTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev feed")),
		open:    key.NewBinding(key.WithKeys("enter", "o"), key.WithHelp("enter", "open")),
		dislike: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "not interested")),
		refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		shuffle: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		chat:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "chat")),
		send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		newChat: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		regen:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "regenerate")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.nextTab, k.prevTab, k.open, k.dislike},
		{k.refresh, k.shuffle, k.search, k.chat},
		{k.send, k.newChat, k.regen, k.back, k.quit},
	}
}

func (k keyMap) feedHelp() []key.Binding {
	return []key.Binding{k.nextTab, k.open, k.dislike, k.refresh, k.shuffle, k.search, k.chat, k.quit}
}

func (k keyMap) searchHelp() []key.Binding {
	return []key.Binding{k.send, k.back}
}

func (k keyMap) chatHelp() []key.Binding {
	return []key.Binding{k.send, k.newChat, k.regen, k.back}
}
