package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zhaobenny/timeslice/internal/bucket"
	"github.com/zhaobenny/timeslice/internal/database"
	"github.com/zhaobenny/timeslice/internal/model"
	"golang.org/x/sync/errgroup"
)

// aggregate computes every slice type for every dimension. The jobs are
// independent, so they run in parallel up to workers at a time.
func aggregate(ctx context.Context, db *database.DB, workers int, logger *slog.Logger, report *Report) error {
	tagsSeen := make(map[model.Dimension]map[model.SliceKey][]model.Tag)
	for _, dim := range model.Dimensions {
		tags, err := db.SliceTags(ctx, dim)
		if err != nil {
			return fmt.Errorf("slice tags for %s: %w", dim, err)
		}
		tagsSeen[dim] = tags
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, dim := range model.Dimensions {
		for _, st := range bucket.SliceTypes {
			g.Go(func() error {
				records, orphaned, err := aggregateSlice(ctx, db, dim, st, tagsSeen[dim])
				if err != nil {
					return fmt.Errorf("aggregate %s by %s: %w", st.Name, dim, err)
				}
				for _, key := range orphaned {
					logger.Warn("orphaned slice dropped", "dimension", dim, "slice", key.String(), "slice_type", st.Name)
				}
				if err := db.SaveHistograms(ctx, dim, records); err != nil {
					return fmt.Errorf("save %s by %s: %w", st.Name, dim, err)
				}
				report.addHistograms(dim, len(records), len(orphaned))
				return nil
			})
		}
	}
	return g.Wait()
}

// aggregateSlice folds the grouped rows of one slice type into a histogram per
// slice key. For the group and project dimensions each key is joined with the
// tags seen for it; keys with no known tags are returned as orphaned instead.
func aggregateSlice(ctx context.Context, db *database.DB, dim model.Dimension, st bucket.SliceType, tagsSeen map[model.SliceKey][]model.Tag) ([]database.HistogramRecord, []model.SliceKey, error) {
	rows, err := db.GroupSlice(ctx, dim, st)
	if err != nil {
		return nil, nil, err
	}

	var order []model.SliceKey
	grouped := make(map[model.SliceKey][]bucket.Row)
	for _, r := range rows {
		if _, ok := grouped[r.Key]; !ok {
			order = append(order, r.Key)
		}
		grouped[r.Key] = append(grouped[r.Key], r.Row)
	}

	var records []database.HistogramRecord
	var orphaned []model.SliceKey
	for _, key := range order {
		record := database.HistogramRecord{
			Key:       key,
			SliceType: st.Name,
			Histogram: bucket.Fold(grouped[key], st.Depth()),
		}
		if dim != model.DimensionType {
			tags, ok := tagsSeen[key]
			if !ok {
				orphaned = append(orphaned, key)
				continue
			}
			record.Tags = tags
		}
		records = append(records, record)
	}
	return records, orphaned, nil
}
