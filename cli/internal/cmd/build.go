package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/spf13/cobra"
	"github.com/zhaobenny/timeslice/internal/config"
	"github.com/zhaobenny/timeslice/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild data.json from the CSV exports",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().String("source-dir", "", "Directory holding the CSV exports")
	buildCmd.Flags().StringP("output", "o", "", "Path of the written document")
	buildCmd.Flags().String("db", "", "Path of the working database")
	buildCmd.Flags().Int("workers", 0, "Parallel aggregations (0 = number of CPUs, at most 4)")
	buildCmd.Flags().Bool("notify", false, "Show a desktop notification when done")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("source-dir"); v != "" {
		cfg.SourceDir = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.OutputPath = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	notify, _ := cmd.Flags().GetBool("notify")

	report, err := build(cmd.Context(), cfg, newLogger(cmd))
	if notify {
		sendNotification(report, err)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d entries from %d files (%d hour rows).\n", report.Entries, report.Files, report.ExpandedRows)
	if report.InsertFailures > 0 {
		fmt.Printf("Warning: %d entries could not be stored.\n", report.InsertFailures)
	}
	if n := report.Orphaned(); n > 0 {
		fmt.Printf("Warning: %d slices had no tags and were dropped.\n", n)
	}
	fmt.Printf("Wrote %s in %s.\n", cfg.OutputPath, report.Duration.Round(time.Millisecond))
	return nil
}

// build runs the pipeline for cfg and writes the document
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Report, error) {
	_, report, err := pipeline.BuildConfig(ctx, cfg, logger)
	return report, err
}

func sendNotification(report *pipeline.Report, err error) {
	beeep.AppName = "timeslice"
	if err != nil {
		beeep.Alert("timeslice build failed", err.Error(), "")
		return
	}
	beeep.Notify("timeslice", fmt.Sprintf("Aggregated %d entries", report.Entries), "")
}
