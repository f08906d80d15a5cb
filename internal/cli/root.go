package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/config"
	"github.com/andy/tasktimer/internal/logging"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tasktimer",
	Short: "Track time spent on tasks",
	Long: `Tasktimer starts and pauses per-task timers against a task API and keeps
every open view of a task in sync.

By default, running tasktimer without arguments launches the interactive TUI.
Use subcommands for CLI operations, and "tasktimer serve" to run the API.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch TUI
		return launchTUI(cmd, args)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/tasktimer/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level from the config file")

	// Add all subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tuiCmd)
}

// loadConfig reads the config selected by --config, falling back to defaults
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newClientApp wires the client-side stack with a stderr logger
func newClientApp(ctx context.Context) (*app.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return app.NewClient(ctx, cfg, logger)
}

// logNotifier routes controller notifications to the logger
type logNotifier struct {
	logger *log.Logger
}

func (n logNotifier) Warn(msg string)  { n.logger.Warn(msg) }
func (n logNotifier) Error(msg string) { n.logger.Error(msg) }
