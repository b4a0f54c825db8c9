package stream

import (
	"encoding/json"
	"io"

	"github.com/desertthunder/aehx/internal/models"
)

// EventKind discriminates the variants of [Event].
type EventKind string

const (
	EventDelta EventKind = "delta" // incremental text to append
	EventDone  EventKind = "done"  // terminal: authoritative history and stats
	EventError EventKind = "error" // terminal: generation failed server side
)

// Event is one decoded chat stream frame.
//
// Which fields are set depends on Kind; unknown kinds are delivered as-is.
type Event struct {
	Kind    EventKind            `json:"event"`
	Delta   string               `json:"delta,omitempty"`
	History []models.ChatMessage `json:"history,omitempty"`
	Stats   json.RawMessage      `json:"stats,omitempty"`
	Message *models.ChatMessage  `json:"message,omitempty"`
	Detail  string               `json:"detail,omitempty"`
}

// FinalStats returns the stats of a done event, falling back to the stats on its message.
func (e Event) FinalStats() json.RawMessage {
	if len(e.Stats) > 0 && string(e.Stats) != "null" {
		return e.Stats
	}
	if e.Message != nil {
		return e.Message.Stats
	}
	return nil
}

// Events decodes chat events from r and passes each one to fn.
//
// Frames that are not valid JSON objects are dropped.
func Events(r io.Reader, fn func(Event)) error {
	return Decode(r, func(payload []byte) {
		var ev Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		fn(ev)
	})
}

// Values decodes every frame of r into a fresh T and passes it to fn, dropping frames that do not parse.
func Values[T any](r io.Reader, fn func(T)) error {
	return Decode(r, func(payload []byte) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return
		}
		fn(v)
	})
}

// Sink receives chat events with one method per variant.
type Sink interface {
	OnDelta(text string)
	OnDone(ev Event)
	OnError(detail string)
}

// Dispatch adapts a [Sink] to the callback form taken by [Events].
func Dispatch(s Sink) func(Event) {
	return func(ev Event) {
		switch ev.Kind {
		case EventDelta:
			s.OnDelta(ev.Delta)
		case EventDone:
			s.OnDone(ev)
		case EventError:
			s.OnError(ev.Detail)
		}
	}
}

// Collector is a [Sink] that records what it receives.
type Collector struct {
	Text   string
	Done   *Event
	Errors []string
}

func (c *Collector) OnDelta(text string)   { c.Text += text }
func (c *Collector) OnDone(ev Event)       { c.Done = &ev }
func (c *Collector) OnError(detail string) { c.Errors = append(c.Errors, detail) }
