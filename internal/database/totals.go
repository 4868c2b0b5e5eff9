package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhaobenny/timeslice/internal/bucket"
)

// Total slice types
const (
	TotalsProject            = "project"
	TotalsProjectDescription = "project.description"
	TotalsType               = "type"
)

// totalQueries compute each flat total from raw entry durations
var totalQueries = map[string]string{
	TotalsProject: `
		SELECT project, SUM(duration) FROM entries GROUP BY project`,
	TotalsProjectDescription: `
		SELECT project || '|' || description, SUM(duration) FROM entries GROUP BY project, description`,
	TotalsType: `
		SELECT j.value, SUM(e.duration) FROM entries e, json_each(e.tags) j GROUP BY j.value`,
}

// BuildTotals fills the totals table. Entries with several tags count in full
// toward each of them.
func (db *DB) BuildTotals(ctx context.Context) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int64
	for _, sliceType := range []string{TotalsProject, TotalsProjectDescription, TotalsType} {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO totals (slice_type, slice_key, total) SELECT ?, * FROM (`+totalQueries[sliceType]+`)`,
			sliceType)
		if err != nil {
			return 0, fmt.Errorf("totals by %s: %w", sliceType, err)
		}
		affected, _ := result.RowsAffected()
		n += affected
	}
	return n, tx.Commit()
}

// Totals returns slice type -> slice key -> seconds
func (db *DB) Totals(ctx context.Context) (map[string]map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT slice_type, slice_key, total FROM totals`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]int64)
	for rows.Next() {
		var sliceType, key string
		var total int64
		if err := rows.Scan(&sliceType, &key, &total); err != nil {
			return nil, err
		}
		if out[sliceType] == nil {
			out[sliceType] = make(map[string]int64)
		}
		out[sliceType][key] = total
	}
	return out, rows.Err()
}

// timeLabelExpr builds the SQL expression for a time type's label from the
// expanded_hours label columns
func timeLabelExpr(tt bucket.TimeType) (string, error) {
	var parts []string
	for _, p := range tt.Parts {
		if p.Literal != "" {
			parts = append(parts, "'"+strings.ReplaceAll(p.Literal, "'", "''")+"'")
			continue
		}
		col, ok := componentColumns[p.Component]
		if !ok {
			return "", fmt.Errorf("%s: no column for component %s", tt.Name, p.Component)
		}
		parts = append(parts, col)
	}
	return strings.Join(parts, " || "), nil
}

func timeTotalQuery(tt bucket.TimeType) (string, error) {
	if tt.Source == bucket.Raw {
		if comps := tt.Components(); len(comps) != 1 || comps[0] != bucket.Year {
			return "", fmt.Errorf("%s: raw time types are bucketed by year only", tt.Name)
		}
		// start_at is stored in the observer's location, so its prefix is the local year
		return `SELECT substr(start_at, 1, 4), SUM(duration) FROM entries GROUP BY 1`, nil
	}

	expr, err := timeLabelExpr(tt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT %s, COUNT(1) FROM expanded_hours e GROUP BY 1`, expr), nil
}

// BuildTimeTotals fills time_totals for every time type in the catalogue
func (db *DB) BuildTimeTotals(ctx context.Context) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int64
	for _, tt := range bucket.TimeTypes {
		query, err := timeTotalQuery(tt)
		if err != nil {
			return 0, err
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO time_totals (time_type, time_value, total) SELECT ?, * FROM (`+query+`)`,
			tt.Name)
		if err != nil {
			return 0, fmt.Errorf("time totals by %s: %w", tt.Name, err)
		}
		affected, _ := result.RowsAffected()
		n += affected
	}
	return n, tx.Commit()
}

// TimeTotal is one calendar bucket of the byTime section
type TimeTotal struct {
	TimeType  string
	TimeValue string
	Total     int64
}

// TimeTotals returns every calendar bucket ordered by time type and label
func (db *DB) TimeTotals(ctx context.Context) ([]TimeTotal, error) {
	return db.queryTimeTotals(ctx, `
		SELECT time_type, time_value, total FROM time_totals
		ORDER BY time_type, time_value
	`)
}

// TopTimeTotals returns, per time type, the n buckets with the greatest labels,
// ordered by total descending. Week labels read WW_YYYY, so they are ranked
// by year first.
func (db *DB) TopTimeTotals(ctx context.Context, n int) ([]TimeTotal, error) {
	return db.queryTimeTotals(ctx, `
		SELECT time_type, time_value, total
		FROM (
			SELECT row_number() OVER (
				PARTITION BY time_type
				ORDER BY sort_key DESC
			) AS rnk, time_type, time_value, total, sort_key
			FROM (
				SELECT time_type, time_value, total,
					CASE WHEN time_type = 'week'
						THEN substr(time_value, 4) || '_' || substr(time_value, 1, 2)
						ELSE time_value
					END AS sort_key
				FROM time_totals
			) keyed
		) parted
		WHERE parted.rnk <= ?
		ORDER BY parted.time_type, parted.total DESC, parted.sort_key DESC
	`, n)
}

func (db *DB) queryTimeTotals(ctx context.Context, query string, args ...any) ([]TimeTotal, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TimeTotal
	for rows.Next() {
		var t TimeTotal
		if err := rows.Scan(&t.TimeType, &t.TimeValue, &t.Total); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
