package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhaobenny/timeslice/internal/export"
)

// WriteDocument atomically writes doc as JSON to path
func WriteDocument(path string, doc *export.Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	// Write to a temp file then rename so readers never see a partial document
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadDocument loads a document written by WriteDocument
func ReadDocument(path string) (*export.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return export.Decode(data)
}
