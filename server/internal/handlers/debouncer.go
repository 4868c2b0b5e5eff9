package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zhaobenny/timeslice/internal/export"
)

// RebuildFunc reruns the pipeline and returns the new document
type RebuildFunc func(ctx context.Context) (*export.Document, error)

// RebuildDebouncer delays rebuilds to batch several requests together
type RebuildDebouncer struct {
	rebuild RebuildFunc
	store   *Store
	delay   time.Duration
	logger  *slog.Logger

	mu         sync.Mutex
	generation int
	pending    bool

	// runMu keeps two rebuilds from sharing the working database
	runMu sync.Mutex
}

// NewRebuildDebouncer creates a debouncer with the specified delay
func NewRebuildDebouncer(rebuild RebuildFunc, store *Store, delay time.Duration, logger *slog.Logger) *RebuildDebouncer {
	return &RebuildDebouncer{
		rebuild: rebuild,
		store:   store,
		delay:   delay,
		logger:  logger,
	}
}

// Schedule queues a rebuild, resetting the timer if one is already pending
func (d *RebuildDebouncer) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Bump generation (invalidates old timer)
	d.generation++
	d.pending = true
	gen := d.generation
	time.AfterFunc(d.delay, func() {
		d.flush(gen)
	})
}

// Pending reports whether a rebuild is waiting for its timer
func (d *RebuildDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *RebuildDebouncer) flush(generation int) {
	d.mu.Lock()
	if !d.pending || d.generation != generation {
		// Stale timer or already flushed
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.runMu.Lock()
	defer d.runMu.Unlock()

	started := time.Now()
	doc, err := d.rebuild(context.Background())
	if err != nil {
		d.logger.Error("rebuild failed", "error", err)
		return
	}
	d.store.Set(doc)
	d.logger.Info("rebuild finished", "duration", time.Since(started))
}
