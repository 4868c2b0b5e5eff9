package handlers

import (
	"sync"
	"time"

	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/pipeline"
)

// Store holds the document the dashboard serves
type Store struct {
	path string

	mu       sync.RWMutex
	doc      *export.Document
	loadedAt time.Time
	err      error
}

// NewStore creates a store reading the document at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Reload reads the document from disk again. On failure the previous
// document is kept and the error is remembered.
func (s *Store) Reload() error {
	doc, err := pipeline.ReadDocument(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		return err
	}
	s.doc, s.err = doc, nil
	s.loadedAt = time.Now()
	return nil
}

// Set replaces the served document
func (s *Store) Set(doc *export.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc, s.err = doc, nil
	s.loadedAt = time.Now()
}

// Document returns the served document, or nil with the last load error
func (s *Store) Document() (*export.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.err
}

// LoadedAt returns when the current document was loaded
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
