package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/zhaobenny/timeslice/internal/parser"
	"gopkg.in/yaml.v3"
)

// Config holds settings shared by the CLI and the dashboard server
type Config struct {
	SourceDir     string       `yaml:"source_dir"`
	SourcePattern string       `yaml:"source_pattern"`
	DBPath        string       `yaml:"db_path"`
	OutputPath    string       `yaml:"output_path"`
	Timezone      string       `yaml:"timezone"`
	Workers       int          `yaml:"workers"`
	TopN          int          `yaml:"top_n"`
	Server        ServerConfig `yaml:"server"`
}

// ServerConfig holds dashboard settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	SessionDB    string        `yaml:"session_db"`
	PasswordHash string        `yaml:"password_hash"`
	APIKeyHash   string        `yaml:"api_key_hash"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
	TrustProxy   bool          `yaml:"trust_proxy"`
	RebuildDelay time.Duration `yaml:"rebuild_delay"`
}

func defaults() Config {
	return Config{
		SourceDir:     ".",
		SourcePattern: parser.DefaultPattern,
		DBPath:        "timeslice.db",
		OutputPath:    "data.json",
		TopN:          3,
		Server: ServerConfig{
			Addr:         ":8080",
			SessionDB:    "timeslice-sessions.db",
			RateLimit:    5,
			RateBurst:    20,
			RebuildDelay: 5 * time.Second,
		},
	}
}

// Path returns the config file location: $TIMESLICE_CONFIG, or ~/.timeslice.yaml
func Path() (string, error) {
	if p := os.Getenv("TIMESLICE_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".timeslice.yaml"), nil
}

// Load loads the configuration from the default path, then applies
// environment overrides
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration at path and applies environment
// overrides. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// ReadFile loads the configuration at path without environment overrides.
// Use it for a config that will be saved back.
func ReadFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return &cfg, nil
}

// applyEnv overrides file settings with TIMESLICE_* variables and PORT
func applyEnv(cfg *Config) {
	cfg.SourceDir = getEnv("TIMESLICE_SOURCE_DIR", cfg.SourceDir)
	cfg.DBPath = getEnv("TIMESLICE_DB_PATH", cfg.DBPath)
	cfg.OutputPath = getEnv("TIMESLICE_OUTPUT", cfg.OutputPath)
	cfg.Timezone = getEnv("TIMESLICE_TZ", cfg.Timezone)
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if w, err := strconv.Atoi(os.Getenv("TIMESLICE_WORKERS")); err == nil && w > 0 {
		cfg.Workers = w
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Save saves the configuration to path
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Location resolves the configured timezone. Empty means the system zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Sources lists the export files the configuration points at
func (c *Config) Sources() ([]string, error) {
	return parser.FindSourceFiles(c.SourceDir, c.SourcePattern)
}
