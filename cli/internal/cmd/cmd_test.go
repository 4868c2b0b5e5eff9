package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/zhaobenny/timeslice/internal/config"
)

func TestResolveVersionInfo(t *testing.T) {
	tests := []struct {
		name         string
		v, c, d      string
		bi           buildInfo
		wantV, wantC string
		wantD        string
	}{
		{"ldflags win", "1.0.0", "abc", "2024-01-01", buildInfo{mainVersion: "v2"}, "1.0.0", "abc", "2024-01-01"},
		{"build info fills placeholders", defaultVersion, "", "", buildInfo{mainVersion: "v0.3.0", vcsRevision: "deadbeef"}, "v0.3.0", "deadbeef", defaultBuildDate},
		{"devel ignored", "", "", "", buildInfo{mainVersion: develVersion}, defaultVersion, defaultCommitHash, defaultBuildDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, c, d := resolveVersionInfo(tt.v, tt.c, tt.d, tt.bi)
			if v != tt.wantV || c != tt.wantC || d != tt.wantD {
				t.Errorf("resolveVersionInfo() = %q, %q, %q, want %q, %q, %q", v, c, d, tt.wantV, tt.wantC, tt.wantD)
			}
		})
	}
}

func TestFormatVersionLine(t *testing.T) {
	if got := formatVersionLine("v1", defaultCommitHash, defaultBuildDate); got != "timeslice v1" {
		t.Errorf("formatVersionLine() = %q, want %q", got, "timeslice v1")
	}
	want := "timeslice v1 (commit: abc, built: today)"
	if got := formatVersionLine("v1", "abc", "today"); got != want {
		t.Errorf("formatVersionLine() = %q, want %q", got, want)
	}
}

const sampleCSV = `User,Email,Client,Project,Task,Description,Billable,Start date,Start time,End date,End time,Duration,Tags,Amount ()
Me,me@example.com,,Work,,standup,No,2022-03-07,09:00:00,2022-03-07,10:30:00,01:30:00,,
`

func TestBuildWritesDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Toggl_time_entries_2022.csv"), []byte(sampleCSV), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		SourceDir:     dir,
		SourcePattern: "Toggl_time_entries_*.csv",
		DBPath:        filepath.Join(dir, "timeslice.db"),
		OutputPath:    filepath.Join(dir, "out", "data.json"),
		Timezone:      "UTC",
		TopN:          3,
	}
	report, err := build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("build() error = %v", err)
	}
	if report.Entries != 1 {
		t.Errorf("Entries = %d, want 1", report.Entries)
	}
	if _, err := os.Stat(cfg.OutputPath); err != nil {
		t.Errorf("document not written: %v", err)
	}
}

func TestBuildNoSources(t *testing.T) {
	cfg := &config.Config{SourceDir: t.TempDir(), SourcePattern: "*.csv", Timezone: "UTC"}
	if _, err := build(context.Background(), cfg, nil); err == nil {
		t.Error("build() with no sources succeeded, want error")
	}
}

func TestConfigSaveKeepsEnvironmentOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TIMESLICE_DB_PATH", "/tmp/env.db")
	t.Setenv("PORT", "7070")

	rootCmd.SetArgs([]string{"config", "--config", path, "--output", "site/data.json"})
	if err := Execute(); err != nil {
		t.Fatalf("config error = %v", err)
	}

	cfg, err := config.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputPath != "site/data.json" {
		t.Errorf("OutputPath = %q, want %q", cfg.OutputPath, "site/data.json")
	}
	if cfg.DBPath != "timeslice.db" {
		t.Errorf("DBPath = %q, want the default, not the environment value", cfg.DBPath)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":8080")
	}
}
