package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks",
	Long:  `List, create, inspect, and change the status of tasks.`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		tasks, err := a.Query.Tasks(ctx)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found")
			return nil
		}

		// Print table header
		fmt.Printf("%-36s %-30s %-10s %-10s %s\n", "ID", "Title", "Status", "Total", "")
		fmt.Println(strings.Repeat("-", 92))

		for _, task := range tasks {
			marker := ""
			if _, open := timecalc.FindOpenInterval(task.TimeLogs); open {
				marker = "● running"
			}
			fmt.Printf("%-36s %-30s %-10s %-10s %s\n",
				task.ID,
				truncate(task.Title, 30),
				task.Status,
				timecalc.FormatSeconds(task.TotalTimeSpent),
				marker,
			)
		}

		fmt.Printf("\nTotal: %d task(s)\n", len(tasks))
		return nil
	},
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var status domain.TaskStatus
		if raw, _ := cmd.Flags().GetString("status"); raw != "" {
			parsed, err := domain.ParseTaskStatus(raw)
			if err != nil {
				return err
			}
			status = parsed
		}

		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := a.API.CreateTask(ctx, args[0], status)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		fmt.Printf("✓ Task created: %s\n", task.Title)
		fmt.Printf("  ID: %s\n", task.ID)
		fmt.Printf("  Status: %s\n", task.Status)
		return nil
	},
}

var tasksShowCmd = &cobra.Command{
	Use:   "show [task_id_or_title]",
	Short: "Show a task and its time logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := resolveTask(ctx, a, args[0])
		if err != nil {
			return err
		}

		ctrl := a.NewController(task, "cli-show", nil, nil)
		defer ctrl.Close()
		state := ctrl.Snapshot()

		fmt.Printf("Task: %s\n", task.Title)
		fmt.Printf("  ID: %s\n", task.ID)
		fmt.Printf("  Status: %s\n", task.Status)
		fmt.Printf("  Timer: %s\n", state.State)
		fmt.Printf("  Total: %s\n", timecalc.FormatSeconds(ctrl.LiveTotal()))

		if len(task.TimeLogs) == 0 {
			fmt.Println("\nNo time logs")
			return nil
		}

		fmt.Printf("\n%-25s %-25s %s\n", "Start", "End", "Duration")
		fmt.Println(strings.Repeat("-", 62))
		now := a.Clock.Now()
		for _, l := range task.TimeLogs {
			end := l.End
			duration := timecalc.FormatDuration(timecalc.LogDuration(l))
			if timecalc.IsOpen(l) {
				end = "(running)"
				duration = timecalc.FormatDuration(timecalc.OpenElapsed(l, now))
			}
			fmt.Printf("%-25s %-25s %s\n", l.Start, end, duration)
		}
		return nil
	},
}

var tasksStatusCmd = &cobra.Command{
	Use:   "status [task_id_or_title] [status]",
	Short: "Change the status of a task",
	Long: `Change the status of a task. Moving a task to DONE, CLOSED, or CANCELED
pauses its running timer first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status, err := domain.ParseTaskStatus(args[1])
		if err != nil {
			return err
		}

		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := resolveTask(ctx, a, args[0])
		if err != nil {
			return err
		}

		ctrl := a.NewController(task, "cli-status", nil, nil)
		defer ctrl.Close()

		if res := ctrl.ApplyStatus(ctx, status); !res.OK {
			return fmt.Errorf("failed to stop the timer: %w", res.Err)
		}

		updated, err := a.API.UpdateStatus(ctx, task.ID, status)
		if err != nil {
			ctrl.ApplyStatus(ctx, task.Status)
			return fmt.Errorf("failed to update status: %w", err)
		}
		a.Query.Invalidate()

		fmt.Printf("✓ %s is now %s\n", updated.Title, updated.Status)
		if status.IsTerminal() {
			fmt.Printf("  Total: %s\n", timecalc.FormatSeconds(updated.TotalTimeSpent))
		}
		return nil
	},
}

func init() {
	tasksCreateCmd.Flags().String("status", "", "initial status (default TODO)")

	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksCreateCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksStatusCmd)
}

// resolveTask resolves a task by ID or, failing that, by title
func resolveTask(ctx context.Context, a *app.Client, idOrTitle string) (domain.Task, error) {
	tasks, err := a.Query.Tasks(ctx)
	if err != nil {
		return domain.Task{}, fmt.Errorf("failed to load tasks: %w", err)
	}

	for _, t := range tasks {
		if t.ID == idOrTitle {
			return t, nil
		}
	}

	var match *domain.Task
	for i := range tasks {
		if strings.EqualFold(tasks[i].Title, idOrTitle) {
			if match != nil {
				return domain.Task{}, fmt.Errorf("more than one task is titled '%s'; use its ID", idOrTitle)
			}
			match = &tasks[i]
		}
	}
	if match == nil {
		return domain.Task{}, fmt.Errorf("task '%s' not found", idOrTitle)
	}
	return *match, nil
}

// truncate shortens s to max runes, marking the cut with an ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
