package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestEntry records the outcome of exporting one feed or transcript.
type ManifestEntry struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Items  int      `json:"items"`
	Files  []string `json:"files,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// ExportManifest summarizes an export run.
type ExportManifest struct {
	Format     string          `json:"format"`
	ExportedAt time.Time       `json:"exported_at"`
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Entries    []ManifestEntry `json:"entries"`
}

// Add appends an entry and updates the counters; a nil err marks it successful.
func (m *ExportManifest) Add(id, name string, items int, files []string, err error) {
	e := ManifestEntry{ID: id, Name: name, Items: items, Files: files, Status: "success"}
	if err != nil {
		e.Status = "failed"
		e.Error = err.Error()
		m.Failed++
	} else {
		m.Successful++
	}
	m.Total++
	m.Entries = append(m.Entries, e)
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *ExportManifest, path string) error {
	if m.Entries == nil {
		m.Entries = []ManifestEntry{}
	}

	data, err := MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
