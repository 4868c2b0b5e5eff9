package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/zhaobenny/timeslice/internal/config"
)

var (
	version    = defaultVersion
	commitHash = defaultCommitHash
	buildDate  = defaultBuildDate
)

// SetVersionInfo sets the build version info from ldflags.
func SetVersionInfo(v, c, d string) {
	version, commitHash, buildDate = resolveVersionInfo(v, c, d, readBuildInfo())
}

var rootCmd = &cobra.Command{
	Use:   "timeslice",
	Short: "Aggregate time-tracking exports into calendar histograms",
	Long: `timeslice reads Toggl CSV exports, tags every entry by project and
description, spreads it over the hours it touched and writes the
aggregated histograms to a single data.json for the dashboard.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(formatVersionLine(version, commitHash, buildDate))
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default $TIMESLICE_CONFIG or ~/.timeslice.yaml)")
	rootCmd.PersistentFlags().String("timezone", "", "Timezone for hour buckets (e.g., Europe/Berlin)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log every stage")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// configPath resolves the --config flag, falling back to the default location
func configPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p, nil
	}
	return config.Path()
}

// loadConfig loads the config file and applies command-line overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if tz, _ := cmd.Flags().GetString("timezone"); tz != "" {
		cfg.Timezone = tz
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
