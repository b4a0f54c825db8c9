package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/aehx/internal/feed"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title     lipgloss.Style
	ok        lipgloss.Style
	err       lipgloss.Style
	warn      lipgloss.Style
	help      lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:     NewBold(t).MarginBottom(1),
		ok:        NewBold(s),
		err:       NewBold(e),
		warn:      NewStyle(w),
		help:      NewEm(h),
		tab:       NewStyle(h).Padding(0, 2),
		activeTab: NewBold(t).Padding(0, 2).Underline(true),
		user:      NewBold(w),
		assistant: NewBold(s),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// notice picks the status line style for a notification level.
func (p *Palette) notice(level feed.Level) lipgloss.Style {
	switch level {
	case feed.LevelWarning:
		return p.warn
	case feed.LevelError:
		return p.err
	default:
		return p.ok
	}
}
