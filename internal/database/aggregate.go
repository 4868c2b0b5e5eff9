package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/model"
)

// componentColumns maps bucket components to expanded_hours label columns
var componentColumns = map[bucket.Component]string{
	bucket.Hour:        "e.hour",
	bucket.Weekday:     "e.day",
	bucket.Month:       "e.month",
	bucket.Year:        "e.year",
	bucket.Date:        "e.date",
	bucket.Week:        "e.week",
	bucket.WeekOfMonth: "e.week_month",
}

// dimensionColumns are the slice key columns selected for each dimension
var dimensionColumns = map[model.Dimension][]string{
	model.DimensionType:    {"j.value"},
	model.DimensionGroup:   {"e.project", "e.description"},
	model.DimensionProject: {"e.project"},
}

// SliceRow is one grouped row: the slice it belongs to and its bucket
type SliceRow struct {
	Key model.SliceKey
	Row bucket.Row
}

// groupQuery builds the flat grouping query for one dimension and slice type.
// Only catalogue columns are interpolated.
func groupQuery(dim model.Dimension, st bucket.SliceType) (string, error) {
	dimCols, ok := dimensionColumns[dim]
	if !ok {
		return "", fmt.Errorf("unknown dimension %q", dim)
	}

	var keyCols []string
	for _, c := range st.Nesting() {
		col, ok := componentColumns[c]
		if !ok {
			return "", fmt.Errorf("%s: no column for component %s", st.Name, c)
		}
		keyCols = append(keyCols, col)
	}

	from := "expanded_hours e"
	if dim == model.DimensionType {
		from += ", json_each(e.tags) j"
	}

	cols := append(append([]string{}, dimCols...), keyCols...)
	list := strings.Join(cols, ", ")
	return fmt.Sprintf(`
		SELECT %s, COUNT(1), COUNT(DISTINCT e.date), COALESCE(SUM(e.duration), 0)
		FROM %s
		GROUP BY %s
		ORDER BY %s
	`, list, from, list, list), nil
}

// GroupSlice groups expanded rows by slice key and every component of st,
// computing st's statistic per group
func (db *DB) GroupSlice(ctx context.Context, dim model.Dimension, st bucket.SliceType) ([]SliceRow, error) {
	query, err := groupQuery(dim, st)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("group %s by %s: %w", st.Name, dim, err)
	}
	defer rows.Close()

	nDim := len(dimensionColumns[dim])
	depth := st.Depth()

	var out []SliceRow
	for rows.Next() {
		strs := make([]string, nDim+depth)
		var count, days, sum int64
		dest := make([]any, 0, len(strs)+3)
		for i := range strs {
			dest = append(dest, &strs[i])
		}
		dest = append(dest, &count, &days, &sum)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		var key model.SliceKey
		switch dim {
		case model.DimensionType:
			key.Tag = model.Tag(strs[0])
		case model.DimensionGroup:
			key.Project, key.Description = strs[0], strs[1]
		case model.DimensionProject:
			key.Project = strs[0]
		}

		value := bucket.Value{Kind: st.Statistic}
		switch st.Statistic {
		case bucket.Count:
			value.Count = count
		case bucket.ComplexCount:
			value.Count, value.Hours = days, count
		case bucket.Sum:
			value.Count = sum
		}

		out = append(out, SliceRow{
			Key: key,
			Row: bucket.Row{Keys: strs[nDim:], Value: value},
		})
	}
	return out, rows.Err()
}

// BuildSliceTags records the distinct tags seen for every project and every
// project and description pair
func (db *DB) BuildSliceTags(ctx context.Context) error {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT e.project, e.description, j.value
		FROM entries e, json_each(e.tags) j
	`)
	if err != nil {
		return err
	}

	grouped := make(map[model.SliceKey][]model.Tag)
	projects := make(map[string][]model.Tag)
	for rows.Next() {
		var project, description, tag string
		if err := rows.Scan(&project, &description, &tag); err != nil {
			rows.Close()
			return err
		}
		key := model.SliceKey{Project: project, Description: description}
		grouped[key] = append(grouped[key], model.Tag(tag))
		projects[project] = append(projects[project], model.Tag(tag))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, tags := range grouped {
		data, _ := json.Marshal(model.SortTags(tags))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO slice_tags_grouped (project, description, tags) VALUES (?, ?, ?)`,
			key.Project, key.Description, string(data),
		); err != nil {
			return err
		}
	}
	for project, tags := range projects {
		data, _ := json.Marshal(model.SortTags(tags))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO slice_tags_project (project, tags) VALUES (?, ?)`,
			project, string(data),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SliceTags returns the tags seen for each slice key of a dimension. The type
// dimension has no lookup table and returns nil.
func (db *DB) SliceTags(ctx context.Context, dim model.Dimension) (map[model.SliceKey][]model.Tag, error) {
	var query string
	switch dim {
	case model.DimensionGroup:
		query = `SELECT project, description, tags FROM slice_tags_grouped`
	case model.DimensionProject:
		query = `SELECT project, '', tags FROM slice_tags_project`
	default:
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.SliceKey][]model.Tag)
	for rows.Next() {
		var key model.SliceKey
		var tags string
		if err := rows.Scan(&key.Project, &key.Description, &tags); err != nil {
			return nil, err
		}
		var parsed []model.Tag
		if err := json.Unmarshal([]byte(tags), &parsed); err != nil {
			return nil, fmt.Errorf("tags for %s: %w", key, err)
		}
		out[key] = parsed
	}
	return out, rows.Err()
}

// HistogramRecord is one stored histogram for a slice key and slice type
type HistogramRecord struct {
	Key       model.SliceKey
	SliceType string
	Histogram *bucket.Histogram
	Tags      []model.Tag
}

// SaveHistograms stores the folded histograms of one dimension
func (db *DB) SaveHistograms(ctx context.Context, dim model.Dimension, records []HistogramRecord) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		hist, err := json.Marshal(r.Histogram)
		if err != nil {
			return fmt.Errorf("%s %s: %w", r.Key, r.SliceType, err)
		}
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return err
		}

		switch dim {
		case model.DimensionType:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO typed_histograms (tag, slice_type, histogram) VALUES (?, ?, ?)`,
				string(r.Key.Tag), r.SliceType, string(hist))
		case model.DimensionGroup:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO grouped_histograms (project, description, slice_type, histogram, tags) VALUES (?, ?, ?, ?, ?)`,
				r.Key.Project, r.Key.Description, r.SliceType, string(hist), string(tags))
		case model.DimensionProject:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO project_histograms (project, slice_type, histogram, tags) VALUES (?, ?, ?, ?)`,
				r.Key.Project, r.SliceType, string(hist), string(tags))
		default:
			return fmt.Errorf("unknown dimension %q", dim)
		}
		if err != nil {
			return fmt.Errorf("save %s %s: %w", r.Key, r.SliceType, err)
		}
	}
	return tx.Commit()
}

// Histograms reads back every stored histogram of a dimension, ordered by key
// and slice type
func (db *DB) Histograms(ctx context.Context, dim model.Dimension) ([]HistogramRecord, error) {
	var query string
	switch dim {
	case model.DimensionType:
		query = `SELECT tag, '', '', slice_type, histogram, '[]' FROM typed_histograms ORDER BY tag, slice_type`
	case model.DimensionGroup:
		query = `SELECT '', project, description, slice_type, histogram, tags FROM grouped_histograms ORDER BY project, description, slice_type`
	case model.DimensionProject:
		query = `SELECT '', project, '', slice_type, histogram, tags FROM project_histograms ORDER BY project, slice_type`
	default:
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistogramRecord
	for rows.Next() {
		var r HistogramRecord
		var tag, hist, tags string
		if err := rows.Scan(&tag, &r.Key.Project, &r.Key.Description, &r.SliceType, &hist, &tags); err != nil {
			return nil, err
		}
		r.Key.Tag = model.Tag(tag)

		st, err := bucket.LookupSlice(r.SliceType)
		if err != nil {
			return nil, err
		}
		if r.Histogram, err = bucket.DecodeHistogram([]byte(hist), st); err != nil {
			return nil, fmt.Errorf("%s: %w", r.Key, err)
		}
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return nil, fmt.Errorf("%s tags: %w", r.Key, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
