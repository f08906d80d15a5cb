package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset data in the task database",
	Long: `Reset data in the task database used by "tasktimer serve".

Examples:
  tasktimer reset logs    # Delete all time logs, keeping tasks
  tasktimer reset all     # Wipe tasks and time logs`,
}

var resetLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Delete all time logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetTables(cmd, "This will delete ALL time logs. Continue?", "time_logs")
	},
}

var resetAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete ALL data: tasks and time logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Order matters due to foreign keys
		return resetTables(cmd, "This will delete ALL tasks and time logs. Continue?", "time_logs", "tasks")
	},
}

func resetTables(cmd *cobra.Command, prompt string, tables ...string) error {
	if !confirmPrompt(prompt) {
		fmt.Println("Cancelled.")
		return nil
	}

	server, err := newServerApp(cmd.Context())
	if err != nil {
		return err
	}
	defer server.Close()

	for _, table := range tables {
		if _, err := server.DB.ExecContext(cmd.Context(), fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	fmt.Printf("Cleared %s.\n", strings.Join(tables, ", "))
	return nil
}

func confirmPrompt(message string) bool {
	fmt.Printf("%s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func init() {
	resetCmd.PersistentFlags().BoolVar(&insecureDB, "insecure-db", false, "open the database without encryption")
	resetCmd.AddCommand(resetLogsCmd)
	resetCmd.AddCommand(resetAllCmd)
}
