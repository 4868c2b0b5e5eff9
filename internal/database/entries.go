package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/model"
)

// ErrNotPersisted is returned when an entry insert does not store exactly one row
var ErrNotPersisted = errors.New("entry not persisted")

// Ingest inserts the entries of one source file in a single transaction
type Ingest struct {
	db       *DB
	tx       *sql.Tx
	stmt     *sql.Stmt
	source   string
	inserted int64
}

// BeginIngest starts a transaction for entries read from source. The caller
// must finish with Commit or Rollback.
func (db *DB) BeginIngest(ctx context.Context, source string) (*Ingest, error) {
	db.writeMu.Lock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.writeMu.Unlock()
		return nil, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries
		(project, description, tags, billable, start_at, end_at, duration, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		db.writeMu.Unlock()
		return nil, err
	}

	return &Ingest{db: db, tx: tx, stmt: stmt, source: source}, nil
}

// Add inserts one entry. Failures to persist the row wrap ErrNotPersisted and
// leave the transaction usable.
func (in *Ingest) Add(ctx context.Context, e model.TimeEntry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return err
	}

	result, err := in.stmt.ExecContext(ctx,
		e.Project, e.Description, string(tags), e.Billable,
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339),
		e.DurationSeconds(), in.source,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotPersisted, err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return fmt.Errorf("%w: %d rows affected", ErrNotPersisted, n)
	}
	in.inserted++
	return nil
}

// Inserted returns the number of rows stored so far
func (in *Ingest) Inserted() int64 {
	return in.inserted
}

// Commit stores the file's entries
func (in *Ingest) Commit() error {
	defer in.db.writeMu.Unlock()
	in.stmt.Close()
	return in.tx.Commit()
}

// Rollback discards the file's entries
func (in *Ingest) Rollback() error {
	defer in.db.writeMu.Unlock()
	in.stmt.Close()
	return in.tx.Rollback()
}

// storedEntry is an entry as read back for hour expansion
type storedEntry struct {
	id          int64
	project     string
	description string
	tags        string
	duration    int64
	start, end  time.Time
}

func (db *DB) storedEntries(ctx context.Context) ([]storedEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, project, description, tags, duration, start_at, end_at
		FROM entries ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []storedEntry
	for rows.Next() {
		var e storedEntry
		var start, end string
		if err := rows.Scan(&e.id, &e.project, &e.description, &e.tags, &e.duration, &start, &end); err != nil {
			return nil, err
		}
		if e.start, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.id, err)
		}
		if e.end, err = time.Parse(time.RFC3339, end); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ExpandHours writes one expanded_hours row per local hour touched by each
// entry, labelled with every bucket component. Returns the number of rows.
func (db *DB) ExpandHours(ctx context.Context, loc *time.Location) (int64, error) {
	entries, err := db.storedEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("read entries: %w", err)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO expanded_hours
		(entry_id, hour_start, project, description, tags, duration,
		 hour, day, month, year, date, week, week_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var n int64
	for _, e := range entries {
		for h := range bucket.ExpandHours(e.start, e.end, loc) {
			_, err := stmt.ExecContext(ctx,
				e.id, h.Format(time.RFC3339), e.project, e.description, e.tags, e.duration,
				bucket.Hour.Label(h), bucket.Weekday.Label(h), bucket.Month.Label(h),
				bucket.Year.Label(h), bucket.Date.Label(h), bucket.Week.Label(h),
				bucket.WeekOfMonth.Label(h),
			)
			if err != nil {
				return 0, fmt.Errorf("expand entry %d: %w", e.id, err)
			}
			n++
		}
	}

	return n, tx.Commit()
}

// ExpandedRows returns the expanded rows for one entry, in hour order
func (db *DB) ExpandedRows(ctx context.Context, entryID int64) ([]model.ExpandedHourRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT entry_id, hour_start, project, description, tags, duration
		FROM expanded_hours WHERE entry_id = ? ORDER BY hour_start
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExpandedHourRow
	for rows.Next() {
		var r model.ExpandedHourRow
		var hour, tags string
		if err := rows.Scan(&r.EntryID, &hour, &r.Project, &r.Description, &tags, &r.DurationSeconds); err != nil {
			return nil, err
		}
		if r.Hour, err = time.Parse(time.RFC3339, hour); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountEntries returns the number of stored entries
func (db *DB) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entries`).Scan(&n)
	return n, err
}
