package cli

import (
	"fmt"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/logging"
	"github.com/andy/tasktimer/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the terminal UI",
	Long:  `Launch the interactive terminal user interface for tasktimer.`,
	RunE:  launchTUI,
}

func launchTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	// The terminal belongs to the UI, so logs go to a file
	logger, logFile, err := logging.NewFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := app.NewClient(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info("tui started", "api", cfg.API.BaseURL)
	return tui.Run(a)
}
