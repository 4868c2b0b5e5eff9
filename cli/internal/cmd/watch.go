package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/zhaobenny/timeslice/internal/config"
)

var watchCmd = &cobra.Command{
	Use:   "watch [install|start|stop|uninstall|status|run]",
	Short: "Rebuild data.json on an interval, optionally as a background service",
	Long: `Without a subcommand, rebuilds once per interval in the foreground.

  install     Install as a background service
  start       Start the background service
  stop        Stop the background service
  uninstall   Remove the background service
  status      Show service status`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"install", "start", "stop", "uninstall", "status", "run"},
	RunE:      runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", time.Hour, "Rebuild interval (e.g., 1h, 30m)")
	rootCmd.AddCommand(watchCmd)
}

// watchService implements service.Interface for background rebuilds
type watchService struct {
	configPath string
	interval   time.Duration
	stop       chan struct{}
	logger     service.Logger
}

func (s *watchService) Start(svc service.Service) error {
	s.stop = make(chan struct{})
	go s.run()
	return nil
}

func (s *watchService) Stop(svc service.Service) error {
	close(s.stop)
	return nil
}

func (s *watchService) run() {
	// Rebuild immediately on start
	s.rebuild()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.rebuild()
		case <-s.stop:
			return
		}
	}
}

func (s *watchService) rebuild() {
	cfg, err := config.LoadFrom(s.configPath)
	if err != nil {
		s.errorf("Error loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	report, err := build(ctx, cfg, logger)
	if err != nil {
		s.errorf("Error rebuilding: %v", err)
		return
	}
	if s.logger != nil {
		s.logger.Infof("Rebuilt %s from %d entries", cfg.OutputPath, report.Entries)
	}
}

func (s *watchService) errorf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Errorf(format, args...)
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return fmt.Errorf("invalid --interval %s", interval)
	}
	path, err := configPath(cmd)
	if err != nil {
		return err
	}

	svcConfig := &service.Config{
		Name:        "timeslice-watch",
		DisplayName: "timeslice Rebuild Service",
		Description: "Periodically rebuilds the timeslice dashboard data",
		Arguments:   []string{"watch", "run", "--config=" + path, fmt.Sprintf("--interval=%s", interval)},
	}

	svc := &watchService{configPath: path, interval: interval}
	s, err := service.New(svc, svcConfig)
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}

	var svcCommand string
	if len(args) > 0 {
		svcCommand = args[0]
	}

	switch svcCommand {
	case "install":
		if _, err := config.LoadFrom(path); err != nil {
			return err
		}
		if err := s.Install(); err != nil {
			return fmt.Errorf("installing service: %w", err)
		}
		if err := s.Start(); err != nil {
			return fmt.Errorf("service installed but failed to start: %w", err)
		}
		fmt.Println("Service installed and started.")
		fmt.Printf("Rebuild interval: %s\n", interval)

	case "start":
		if err := s.Start(); err != nil {
			return fmt.Errorf("starting service: %w", err)
		}
		fmt.Println("Service started.")

	case "stop":
		if err := s.Stop(); err != nil {
			return fmt.Errorf("stopping service: %w", err)
		}
		fmt.Println("Service stopped.")

	case "uninstall":
		s.Stop() // ignore error
		if err := s.Uninstall(); err != nil {
			return fmt.Errorf("uninstalling service: %w", err)
		}
		fmt.Println("Service uninstalled.")

	case "status":
		status, err := s.Status()
		if err != nil {
			fmt.Printf("Service status: not installed or error (%v)\n", err)
			return nil
		}
		switch status {
		case service.StatusRunning:
			fmt.Println("Service status: running")
		case service.StatusStopped:
			fmt.Println("Service status: stopped")
		default:
			fmt.Println("Service status: unknown")
		}

	case "run":
		// Running under the service manager
		logger, err := s.Logger(nil)
		if err == nil {
			svc.logger = logger
		}
		return s.Run()

	default:
		// Foreground: service.Run blocks until interrupted
		return s.Run()
	}
	return nil
}
