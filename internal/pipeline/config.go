package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zhaobenny/timeslice/internal/config"
	"github.com/zhaobenny/timeslice/internal/export"
)

// ErrNoSources is returned when the configured directory holds no exports
var ErrNoSources = errors.New("no source files")

// BuildConfig runs the pipeline over the exports cfg points at and writes the
// document to cfg.OutputPath
func BuildConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*export.Document, *Report, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	sources, err := cfg.Sources()
	if err != nil {
		return nil, nil, err
	}
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("%w matching %s in %s", ErrNoSources, cfg.SourcePattern, cfg.SourceDir)
	}

	doc, report, err := Build(ctx, cfg.DBPath, Options{
		Sources:  sources,
		Location: loc,
		Workers:  cfg.Workers,
		TopN:     cfg.TopN,
		Logger:   logger,
	})
	if err != nil {
		return nil, report, err
	}
	if err := WriteDocument(cfg.OutputPath, doc); err != nil {
		return nil, report, fmt.Errorf("writing document: %w", err)
	}
	return doc, report, nil
}
