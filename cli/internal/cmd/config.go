package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zhaobenny/timeslice/internal/auth"
	"github.com/zhaobenny/timeslice/internal/config"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update the configuration file",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().String("source-dir", "", "Directory holding the CSV exports")
	configCmd.Flags().String("pattern", "", "Glob matching the CSV exports")
	configCmd.Flags().String("db", "", "Path of the working database")
	configCmd.Flags().String("output", "", "Path of the written document")
	configCmd.Flags().String("addr", "", "Dashboard listen address")
	configCmd.Flags().Bool("password", false, "Prompt for a dashboard password and store its hash")
	configCmd.Flags().Bool("new-api-key", false, "Generate an API key for scripted rebuilds")
	configCmd.Flags().Bool("show", false, "Show current config")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	if show, _ := cmd.Flags().GetBool("show"); show {
		cfg, err := config.LoadFrom(path)
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.Server.PasswordHash != "" {
			shown.Server.PasswordHash = "(set)"
		}
		if shown.Server.APIKeyHash != "" {
			shown.Server.APIKeyHash = "(set)"
		}
		data, err := yaml.Marshal(&shown)
		if err != nil {
			return err
		}
		fmt.Printf("# %s\n%s", path, data)
		return nil
	}

	// Environment overrides must not end up in the saved file
	cfg, err := config.ReadFile(path)
	if err != nil {
		return err
	}

	changed := false
	for flag, dst := range map[string]*string{
		"source-dir": &cfg.SourceDir,
		"pattern":    &cfg.SourcePattern,
		"db":         &cfg.DBPath,
		"output":     &cfg.OutputPath,
		"addr":       &cfg.Server.Addr,
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			*dst = v
			changed = true
		}
	}
	if tz, _ := cmd.Flags().GetString("timezone"); tz != "" {
		cfg.Timezone = tz
		changed = true
	}
	if _, err := cfg.Location(); err != nil {
		return err
	}

	if prompt, _ := cmd.Flags().GetBool("password"); prompt {
		password, err := readPassword()
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		cfg.Server.PasswordHash = hash
		changed = true
	}

	if newKey, _ := cmd.Flags().GetBool("new-api-key"); newKey {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(key)
		if err != nil {
			return err
		}
		cfg.Server.APIKeyHash = hash
		changed = true
		fmt.Printf("API key (shown once): %s\n", key)
	}

	if !changed {
		return cmd.Usage()
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Println("Configuration saved.")
	return nil
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Dashboard password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}
