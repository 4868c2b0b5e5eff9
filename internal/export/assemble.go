package export

import (
	"context"
	"fmt"

	"github.com/zhaobenny/timeslice/internal/database"
	"github.com/zhaobenny/timeslice/internal/model"
)

// DefaultTopN is how many of the latest buckets byTime.top keeps per time type
const DefaultTopN = 3

// Assemble reads every aggregate table back and builds the document
func Assemble(ctx context.Context, db *database.DB, topN int) (*Document, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	doc := New()

	top, err := db.TopTimeTotals(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("top by time: %w", err)
	}
	for _, t := range top {
		doc.ByTime.Top[t.TimeType] = append(doc.ByTime.Top[t.TimeType], timeValue(t))
	}

	all, err := db.TimeTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("all by time: %w", err)
	}
	for _, t := range all {
		doc.ByTime.All[t.TimeType] = append(doc.ByTime.All[t.TimeType], timeValue(t))
	}

	totals, err := db.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	for key, total := range totals[database.TotalsType] {
		doc.ByType.Totals[key] = total
	}
	for key, total := range totals[database.TotalsProjectDescription] {
		doc.ByGroup.Totals[key] = total
	}
	for key, total := range totals[database.TotalsProject] {
		doc.ByProject.Totals[key] = total
	}

	typed, err := db.Histograms(ctx, model.DimensionType)
	if err != nil {
		return nil, fmt.Errorf("by type: %w", err)
	}
	for _, r := range typed {
		if doc.ByType.All[r.Key.Tag] == nil {
			doc.ByType.All[r.Key.Tag] = Histograms{}
		}
		doc.ByType.All[r.Key.Tag][r.SliceType] = r.Histogram
	}

	grouped, err := db.Histograms(ctx, model.DimensionGroup)
	if err != nil {
		return nil, fmt.Errorf("by group: %w", err)
	}
	for _, r := range grouped {
		descriptions := doc.ByGroup.All[r.Key.Project]
		if descriptions == nil {
			descriptions = make(map[string]*GroupEntry)
			doc.ByGroup.All[r.Key.Project] = descriptions
		}
		entry := descriptions[r.Key.Description]
		if entry == nil {
			entry = &GroupEntry{
				Project:     r.Key.Project,
				Description: r.Key.Description,
				Type:        r.Tags,
				Histograms:  Histograms{},
			}
			descriptions[r.Key.Description] = entry
		}
		entry.Histograms[r.SliceType] = r.Histogram
	}

	projects, err := db.Histograms(ctx, model.DimensionProject)
	if err != nil {
		return nil, fmt.Errorf("by project: %w", err)
	}
	for _, r := range projects {
		entry := doc.ByProject.All[r.Key.Project]
		if entry == nil {
			entry = &ProjectEntry{
				Project:    r.Key.Project,
				Type:       r.Tags,
				Histograms: Histograms{},
			}
			doc.ByProject.All[r.Key.Project] = entry
		}
		entry.Histograms[r.SliceType] = r.Histogram
	}

	return doc, nil
}

func timeValue(t database.TimeTotal) TimeValue {
	return TimeValue{
		TotalTime:    t.Total,
		TimeString:   TimeString(t.TimeType, t.TimeValue),
		OriginalTime: t.TimeValue,
	}
}
