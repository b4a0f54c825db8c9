package tasks

import (
	"fmt"

	"github.com/desertthunder/aehx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase (0 when unknown)
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchPage Phase = iota
	CacheItems
	WriteFiles
	ExportTranscript
	TaskChanged
)

func (p Phase) String() string {
	switch p {
	case FetchPage:
		return "fetch_page"
	case CacheItems:
		return "cache_items"
	case WriteFiles:
		return "write_files"
	case ExportTranscript:
		return "export_transcript"
	case TaskChanged:
		return "task_changed"
	default:
		return ""
	}
}

func fetchPageUpdate(page, maxPages int, kind string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPage,
		Step:    page,
		Total:   maxPages,
		Message: fmt.Sprintf("Fetching %s page %d...", kind, page),
	}
}

func pageFetchedUpdate(page, maxPages, items, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPage,
		Step:    page,
		Total:   maxPages,
		Message: fmt.Sprintf("Page %d: %d items (%d total)", page, items, total),
		Data:    total,
	}
}

func cachedUpdate(page, stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CacheItems,
		Step:    page,
		Message: fmt.Sprintf("Cached %d items", stored),
		Data:    stored,
	}
}

func writingUpdate(format string, items int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteFiles,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %d items as %s...", items, format),
	}
}

func transcriptCompletedUpdate(step, total int, title, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportTranscript,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s", step, total, title, path),
	}
}

func transcriptFailedUpdate(step, total int, id string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportTranscript,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, id, err),
	}
}

func taskChangedUpdate(task models.Task) ProgressUpdate {
	msg := fmt.Sprintf("%s (%s) is %s", task.Task, task.TaskID, task.Status)
	if task.Error != "" {
		msg += ": " + task.Error
	}
	return ProgressUpdate{
		Phase:   TaskChanged,
		Message: msg,
		Data:    task,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
