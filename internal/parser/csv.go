// Package parser reads time-tracking CSV exports into time entries.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zhaobenny/timeslice/internal/classify"
	"github.com/zhaobenny/timeslice/internal/model"
)

// DefaultPattern matches one export file per calendar year
const DefaultPattern = "Toggl_time_entries_*.csv"

// timestampLayout is the export's date and time, joined by a space
const timestampLayout = "2006-01-02 15:04:05"

// Column positions in the export
const (
	colProject     = 3
	colDescription = 5
	colBillable    = 6
	colStartDate   = 7
	colStartTime   = 8
	colEndDate     = 9
	colEndTime     = 10

	minColumns = colEndTime + 1
)

var (
	// ErrMalformedRow is returned for rows that are too short or carry unparsable timestamps
	ErrMalformedRow = errors.New("malformed row")
	// ErrNegativeDuration is returned for rows that end before they start
	ErrNegativeDuration = errors.New("entry ends before it starts")
)

// FindSourceFiles returns the export files in dir matching pattern, sorted by name
func FindSourceFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
	}
	sort.Strings(files)
	return files, nil
}

// Reader streams time entries from one CSV export
type Reader struct {
	csv        *csv.Reader
	loc        *time.Location
	line       int
	headerSeen bool
}

// NewReader creates a Reader that interprets timestamps in loc
func NewReader(r io.Reader, loc *time.Location) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	if loc == nil {
		loc = time.Local
	}
	return &Reader{csv: cr, loc: loc}
}

// Read returns the next entry, or io.EOF once the export is exhausted
func (r *Reader) Read() (model.TimeEntry, error) {
	if !r.headerSeen {
		r.headerSeen = true
		r.line++
		if _, err := r.csv.Read(); err != nil {
			return model.TimeEntry{}, err
		}
	}

	record, err := r.csv.Read()
	r.line++
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.TimeEntry{}, io.EOF
		}
		return model.TimeEntry{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, r.line, err)
	}
	return r.entry(record)
}

func (r *Reader) entry(record []string) (model.TimeEntry, error) {
	if len(record) < minColumns {
		return model.TimeEntry{}, fmt.Errorf("%w: line %d: expected at least %d columns, got %d",
			ErrMalformedRow, r.line, minColumns, len(record))
	}

	start, err := r.timestamp(record[colStartDate], record[colStartTime])
	if err != nil {
		return model.TimeEntry{}, err
	}
	end, err := r.timestamp(record[colEndDate], record[colEndTime])
	if err != nil {
		return model.TimeEntry{}, err
	}
	if end.Before(start) {
		return model.TimeEntry{}, fmt.Errorf("%w: line %d: %s > %s",
			ErrNegativeDuration, r.line, start.Format(timestampLayout), end.Format(timestampLayout))
	}

	project := record[colProject]
	description := classify.CleanDescription(project, record[colDescription])

	return model.TimeEntry{
		Project:     project,
		Description: description,
		Tags:        classify.Classify(project, description),
		Billable:    record[colBillable] != "No",
		Start:       start,
		End:         end,
	}, nil
}

func (r *Reader) timestamp(date, clock string) (time.Time, error) {
	value := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	t, err := time.ParseInLocation(timestampLayout, value, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, r.line, err)
	}
	return t, nil
}

// Line returns the number of CSV lines consumed so far, including the header
func (r *Reader) Line() int {
	return r.line
}

// ParseFile parses a whole export file into memory
func ParseFile(path string, loc *time.Location) ([]model.TimeEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []model.TimeEntry
	reader := NewReader(file, loc)
	for {
		entry, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		entries = append(entries, entry)
	}
}
