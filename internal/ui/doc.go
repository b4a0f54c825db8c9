// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [FeedView] : recommend, history and search tabs backed by a [feed.Dashboard]
//  2. [ChatView] : the current chat session, streamed as the answer arrives
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Feed controllers and chat streams report back from their own goroutines; their callbacks post to a buffered
// channel that a single listener command drains into the event loop.
//
// Keyboard navigation uses vim-style list bindings (j/k) plus tab, enter, x, r, s, / and c, with contextual
// help displayed via charmbracelet/bubbles/help.
package ui
