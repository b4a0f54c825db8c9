// package formatter provides functions to export feed pages and chat transcripts to various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/shared"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "markdown", "txt"}

// ParseFormat normalizes a format name; "md" and "text" are accepted aliases.
func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	switch f {
	case "":
		return "json", nil
	case "md":
		return "markdown", nil
	case "text":
		return "txt", nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidFlag, s, strings.Join(Formats, ", "))
	}
	return f, nil
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch format {
	case "markdown":
		return ".md"
	case "csv":
		return ".csv"
	case "txt":
		return ".txt"
	default:
		return ".json"
	}
}

// FeedExport is one feed walked page by page.
type FeedExport struct {
	Kind       string            `json:"kind"`
	ExportedAt time.Time         `json:"exported_at"`
	Pages      int               `json:"pages"`
	Depth      int               `json:"depth,omitempty"`
	Items      []models.FeedItem `json:"items"`
}

// MarshalJSON encodes v, indented when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// ItemsToCSV converts feed items to CSV with columns: Key, GID, Token, Source, Category, Title, Score, URL, Tags
func ItemsToCSV(items []models.FeedItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Key", "GID", "Token", "Source", "Category", "Title", "Score", "URL", "Tags"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, it := range items {
		record := []string{
			it.Key(),
			strconv.FormatInt(it.GID, 10),
			it.Token,
			it.Source,
			it.Category,
			it.Title,
			strconv.FormatFloat(it.Score, 'f', -1, 64),
			it.URL(),
			strings.Join(it.Tags, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// FeedToMarkdown renders a feed export as a numbered list of linked titles.
func FeedToMarkdown(export *FeedExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s feed\n\n", export.Kind)
	fmt.Fprintf(&buf, "**Exported**: %s\n", export.ExportedAt.Format(time.RFC3339))
	fmt.Fprintf(&buf, "**Items**: %d\n", len(export.Items))
	fmt.Fprintf(&buf, "**Pages**: %d\n", export.Pages)
	if export.Depth > 1 {
		fmt.Fprintf(&buf, "**Depth**: %d\n", export.Depth)
	}
	buf.WriteString("\n## Items\n\n")

	for i, it := range export.Items {
		title := it.Title
		if title == "" {
			title = it.Key()
		}
		line := title
		if u := it.URL(); u != "" {
			line = fmt.Sprintf("[%s](%s)", title, u)
		}
		if it.Category != "" {
			line += fmt.Sprintf(" `%s`", it.Category)
		}
		fmt.Fprintf(&buf, "%d. %s\n", i+1, line)
		if tags := it.DisplayTags(); len(tags) > 0 {
			fmt.Fprintf(&buf, "   - %s\n", strings.Join(tags, ", "))
		}
	}

	return buf.Bytes(), nil
}

// FeedToText renders a feed export as plain text, one item per line.
func FeedToText(export *FeedExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Feed: %s\n", export.Kind)
	fmt.Fprintf(&buf, "Items: %d\n\n", len(export.Items))

	for i, it := range export.Items {
		fmt.Fprintf(&buf, "%d. [%s] %s %s\n", i+1, it.Category, it.Title, it.URL())
	}

	return buf.Bytes(), nil
}

// EncodeFeed renders export in format.
func EncodeFeed(export *FeedExport, format string) ([]byte, error) {
	switch format {
	case "csv":
		return ItemsToCSV(export.Items)
	case "markdown":
		return FeedToMarkdown(export)
	case "txt":
		return FeedToText(export)
	default:
		return MarshalJSON(export, true)
	}
}

// WriteFeedExport writes export to {dir}/{kind}{ext} and returns the path.
func WriteFeedExport(export *FeedExport, format, dir string) (string, error) {
	data, err := EncodeFeed(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s feed: %w", export.Kind, err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, export.Kind+Extension(format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// TranscriptToMarkdown renders a chat session with one heading per turn.
func TranscriptToMarkdown(session *models.ChatSession) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", session.Title)
	fmt.Fprintf(&buf, "**Session**: `%s`\n", session.SessionID)
	fmt.Fprintf(&buf, "**Messages**: %d\n\n", len(session.Messages))

	for _, m := range session.Messages {
		heading := "User"
		if m.Role == "assistant" {
			heading = "Assistant"
		}
		if m.Time != "" {
			heading += " · " + m.Time
		}
		fmt.Fprintf(&buf, "### %s\n\n%s\n\n", heading, strings.TrimSpace(m.Text))
	}

	return buf.Bytes(), nil
}

// TranscriptToText renders a chat session as "role: text" blocks.
func TranscriptToText(session *models.ChatSession) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Chat: %s (%s)\n\n", session.Title, session.SessionID)
	for _, m := range session.Messages {
		fmt.Fprintf(&buf, "%s: %s\n\n", m.Role, strings.TrimSpace(m.Text))
	}

	return buf.Bytes(), nil
}

// TranscriptToCSV writes one row per message with columns: Index, Role, Time, Text
func TranscriptToCSV(session *models.ChatSession) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Index", "Role", "Time", "Text"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for i, m := range session.Messages {
		if err := writer.Write([]string{strconv.Itoa(i), m.Role, m.Time, m.Text}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

type transcriptJSON struct {
	SessionID string               `json:"session_id"`
	Title     string               `json:"title"`
	Messages  []models.ChatMessage `json:"messages"`
}

// EncodeTranscript renders session in format.
func EncodeTranscript(session *models.ChatSession, format string) ([]byte, error) {
	switch format {
	case "csv":
		return TranscriptToCSV(session)
	case "markdown":
		return TranscriptToMarkdown(session)
	case "txt":
		return TranscriptToText(session)
	default:
		msgs := session.Messages
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		return MarshalJSON(transcriptJSON{session.SessionID, session.Title, msgs}, true)
	}
}

// WriteTranscript writes session to path, defaulting to chat_{id}{ext} in the
// working directory.
func WriteTranscript(session *models.ChatSession, format, path string) (string, error) {
	if path == "" {
		path = "chat_" + session.SessionID + Extension(format)
	}

	data, err := EncodeTranscript(session, format)
	if err != nil {
		return "", fmt.Errorf("failed to encode transcript: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
