// Package pipeline runs the batch that turns CSV exports into the data.json
// document: ingest, hour expansion, aggregation and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhaobenny/timeslice/internal/database"
	"github.com/zhaobenny/timeslice/internal/export"
	"github.com/zhaobenny/timeslice/internal/model"
	"github.com/zhaobenny/timeslice/internal/parser"
)

// Options controls a pipeline run
type Options struct {
	// Sources are the CSV exports to ingest, in order
	Sources []string
	// Location is the observer's timezone used for parsing and hour buckets
	Location *time.Location
	// Workers bounds how many aggregations run at once
	Workers int
	// TopN is how many latest buckets byTime.top keeps per time type
	TopN int
	Logger *slog.Logger
}

// DefaultWorkers returns the aggregation parallelism used when none is configured
func DefaultWorkers() int {
	return min(runtime.NumCPU(), 4)
}

// Report summarises a finished run
type Report struct {
	RunID          string
	Files          int
	Entries        int64
	InsertFailures int64
	ExpandedRows   int64
	Totals         int64
	TimeTotals     int64
	Histograms     map[model.Dimension]int
	OrphanedSlices map[model.Dimension]int
	Duration       time.Duration

	mu sync.Mutex
}

func (r *Report) addHistograms(dim model.Dimension, n, orphaned int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Histograms[dim] += n
	r.OrphanedSlices[dim] += orphaned
}

// Orphaned returns the total number of slices dropped for lack of known tags
func (r *Report) Orphaned() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.OrphanedSlices {
		n += v
	}
	return n
}

// Run rebuilds every table in db from opts.Sources and returns the assembled
// document. The database is reset first, so a failed run can simply be rerun.
func Run(ctx context.Context, db *database.DB, opts Options) (*export.Document, *Report, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	report := &Report{
		RunID:          uuid.NewString(),
		Histograms:     make(map[model.Dimension]int),
		OrphanedSlices: make(map[model.Dimension]int),
	}
	logger = logger.With("run_id", report.RunID)
	started := time.Now()

	logger.Info("starting pipeline", "sources", len(opts.Sources), "timezone", opts.Location.String(), "workers", opts.Workers)

	if err := db.Reset(ctx); err != nil {
		return nil, nil, fmt.Errorf("reset tables: %w", err)
	}

	for _, path := range opts.Sources {
		if err := ingestFile(ctx, db, path, opts.Location, logger, report); err != nil {
			return nil, nil, err
		}
		report.Files++
	}
	logger.Info("ingested entries", "files", report.Files, "entries", report.Entries, "insert_failures", report.InsertFailures)

	var err error
	if report.ExpandedRows, err = db.ExpandHours(ctx, opts.Location); err != nil {
		return nil, nil, fmt.Errorf("expand hours: %w", err)
	}
	logger.Info("expanded hours", "rows", report.ExpandedRows)

	if err := db.BuildSliceTags(ctx); err != nil {
		return nil, nil, fmt.Errorf("slice tags: %w", err)
	}

	if report.Totals, err = db.BuildTotals(ctx); err != nil {
		return nil, nil, fmt.Errorf("totals: %w", err)
	}
	if report.TimeTotals, err = db.BuildTimeTotals(ctx); err != nil {
		return nil, nil, fmt.Errorf("time totals: %w", err)
	}
	logger.Info("built totals", "totals", report.Totals, "time_totals", report.TimeTotals)

	if err := aggregate(ctx, db, opts.Workers, logger, report); err != nil {
		return nil, nil, err
	}
	logger.Info("built histograms",
		"type", report.Histograms[model.DimensionType],
		"group", report.Histograms[model.DimensionGroup],
		"project", report.Histograms[model.DimensionProject],
		"orphaned", report.Orphaned())

	doc, err := export.Assemble(ctx, db, opts.TopN)
	if err != nil {
		return nil, nil, fmt.Errorf("assemble document: %w", err)
	}

	report.Duration = time.Since(started)
	logger.Info("pipeline finished", "duration", report.Duration.Round(time.Millisecond))
	return doc, report, nil
}

// ingestFile streams one export into the entries table. A parse failure
// discards the file and aborts the run; rows that fail to persist are logged
// and counted.
func ingestFile(ctx context.Context, db *database.DB, path string, loc *time.Location, logger *slog.Logger, report *Report) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	name := filepath.Base(path)
	in, err := db.BeginIngest(ctx, name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	reader := parser.NewReader(file, loc)
	for {
		if err := ctx.Err(); err != nil {
			in.Rollback()
			return err
		}

		entry, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			in.Rollback()
			return fmt.Errorf("%s: %w", name, err)
		}

		if err := in.Add(ctx, entry); err != nil {
			if !errors.Is(err, database.ErrNotPersisted) {
				in.Rollback()
				return fmt.Errorf("%s: %w", name, err)
			}
			report.InsertFailures++
			logger.Error("entry not inserted", "file", name, "line", reader.Line(), "project", entry.Project, "err", err)
		}
	}

	if err := in.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", name, err)
	}
	report.Entries += in.Inserted()
	logger.Debug("ingested file", "file", name, "entries", in.Inserted())
	return nil
}

// Build opens the database at dbPath, runs the pipeline and closes it again
func Build(ctx context.Context, dbPath string, opts Options) (*export.Document, *Report, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()

	return Run(ctx, db, opts)
}
