// package stream decodes the server-sent event bodies produced by the chat and task endpoints
package stream

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	frameDelimiter = "\n\n"
	dataPrefix     = "data:"
	readSize       = 4096
)

// Decoder turns arbitrarily chunked bytes into complete frame payloads.
//
// It holds two carry-over buffers: the bytes of a multi-byte rune cut by a
// chunk boundary, and the text of a frame whose delimiter has not arrived.
type Decoder struct {
	partial []byte
	pending strings.Builder
	// scanned is how much of pending is known to hold no delimiter.
	scanned int
}

// Feed appends chunk and calls emit with the payload of every frame it completes, in order.
//
// Only the newly appended text (plus one byte, for a delimiter split across
// chunks) is searched, so a frame delivered in many small chunks costs linear time.
func (d *Decoder) Feed(chunk []byte, emit func(payload []byte)) {
	d.pending.WriteString(d.decodeUTF8(chunk))

	text := d.pending.String()
	from := max(0, d.scanned-(len(frameDelimiter)-1))
	idx := strings.Index(text[from:], frameDelimiter)
	if idx < 0 {
		d.scanned = len(text)
		return
	}
	idx += from

	for idx >= 0 {
		if payload := framePayload(text[:idx]); payload != "" {
			emit([]byte(payload))
		}
		text = text[idx+len(frameDelimiter):]
		idx = strings.Index(text, frameDelimiter)
	}

	d.pending.Reset()
	d.pending.WriteString(text)
	d.scanned = len(text)
}

// Pending returns the buffered text of the incomplete trailing frame.
func (d *Decoder) Pending() string {
	return d.pending.String()
}

// decodeUTF8 returns the longest prefix of partial+chunk made of whole runes and keeps the rest.
func (d *Decoder) decodeUTF8(chunk []byte) string {
	buf := append(d.partial, chunk...)
	d.partial = nil

	cut := incompleteTail(buf)
	if cut < len(buf) {
		d.partial = append([]byte(nil), buf[cut:]...)
		buf = buf[:cut]
	}
	return string(buf)
}

// incompleteTail returns the index where a trailing, not yet complete rune starts, or len(b).
func incompleteTail(b []byte) int {
	// a rune is at most utf8.UTFMax bytes, so only the last three can be an unfinished start
	for i := len(b) - 1; i >= 0 && i >= len(b)-(utf8.UTFMax-1); i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return i
		}
		break
	}
	return len(b)
}

// framePayload extracts the data of one frame.
//
// Lines other than "data:" (comments, event names, ids) are ignored and
// several data lines are joined with newlines.
func framePayload(frame string) string {
	frame = strings.TrimSpace(frame)
	if !strings.HasPrefix(frame, dataPrefix) {
		return ""
	}

	var data []string
	for _, line := range strings.Split(frame, "\n") {
		if rest, ok := strings.CutPrefix(line, dataPrefix); ok {
			data = append(data, strings.TrimSpace(rest))
		}
	}
	return strings.TrimSpace(strings.Join(data, "\n"))
}

// Decode reads r to the end, calling emit for each complete frame payload in wire order.
//
// A trailing frame without a delimiter is discarded. A read error other
// than [io.EOF] is returned and ends decoding.
func Decode(r io.Reader, emit func(payload []byte)) error {
	if r == nil {
		return fmt.Errorf("stream: nil reader")
	}

	var d Decoder
	buf := make([]byte, readSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			d.Feed(buf[:n], emit)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
