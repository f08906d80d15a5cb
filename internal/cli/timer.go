package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/timecalc"
	"github.com/spf13/cobra"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Start, pause, or watch a task's timer",
	Long:  `Start, pause, check, or live-watch the timer of a task.`,
}

var timerStartCmd = &cobra.Command{
	Use:   "start [task_id_or_title]",
	Short: "Start the timer of an ONGOING task",
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

		ctrl := a.NewController(task, "cli-start", nil, nil)
		defer ctrl.Close()

		res := ctrl.Start(ctx)
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}

		fmt.Printf("✓ Timer started for %s\n", task.Title)
		fmt.Printf("  Total so far: %s\n", timecalc.FormatSeconds(ctrl.LiveTotal()))
		return nil
	},
}

var timerPauseCmd = &cobra.Command{
	Use:   "pause [task_id_or_title]",
	Short: "Pause the running timer of a task",
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

		ctrl := a.NewController(task, "cli-pause", nil, nil)
		defer ctrl.Close()
		session := ctrl.Snapshot().ElapsedTime

		res := ctrl.Pause(ctx)
		if !res.OK {
			return fmt.Errorf("%s", res.Message)
		}

		fmt.Printf("✓ Timer paused for %s\n", task.Title)
		fmt.Printf("  Session: %s\n", timecalc.FormatSeconds(session))
		fmt.Printf("  Total: %s\n", timecalc.FormatSeconds(ctrl.Snapshot().TotalTimeSpent))
		return nil
	},
}

var timerStatusCmd = &cobra.Command{
	Use:   "status [task_id_or_title]",
	Short: "Show timer status; all running timers when no task is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var tasks []domain.Task
		if len(args) == 1 {
			task, err := resolveTask(ctx, a, args[0])
			if err != nil {
				return err
			}
			tasks = []domain.Task{task}
		} else {
			all, err := a.Query.Tasks(ctx)
			if err != nil {
				return fmt.Errorf("failed to load tasks: %w", err)
			}
			for _, t := range all {
				if _, open := timecalc.FindOpenInterval(t.TimeLogs); open {
					tasks = append(tasks, t)
				}
			}
		}

		if len(tasks) == 0 {
			fmt.Println("No running timers")
			return nil
		}

		for _, task := range tasks {
			ctrl := a.NewController(task, "cli-status", nil, nil)
			state := ctrl.Snapshot()
			ctrl.Close()

			fmt.Printf("%s (%s)\n", task.Title, task.Status)
			fmt.Printf("  Timer: %s\n", state.State)
			if state.IsRunning {
				fmt.Printf("  Session: %s\n", timecalc.FormatSeconds(state.ElapsedTime))
			}
			fmt.Printf("  Total: %s\n", timecalc.FormatSeconds(state.TotalTimeSpent+state.ElapsedTime))
		}
		return nil
	},
}

var timerWatchCmd = &cobra.Command{
	Use:   "watch [task_id_or_title]",
	Short: "Show a live ticking total until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newClientApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		task, err := resolveTask(ctx, a, args[0])
		if err != nil {
			return err
		}

		line := &statusLine{w: os.Stdout, title: task.Title}

		ctrl := a.NewController(task, "cli-watch", logNotifier{a.Logger}, line.render)
		defer ctrl.Close()
		line.render(ctrl.Snapshot())

		// Pick up starts and pauses made from other terminals
		interval := a.Config.API.PollInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		poll := a.Clock.NewTicker(interval)
		defer poll.Stop()

		for {
			select {
			case <-ctx.Done():
				line.finish()
				return nil
			case <-poll.Chan():
				fresh, err := a.Query.Refetch(ctx)
				if err != nil {
					a.Logger.Warn("refresh failed", "err", err)
					continue
				}
				for _, t := range fresh {
					if t.ID == task.ID {
						ctrl.Sync(t)
						line.render(ctrl.Snapshot())
					}
				}
			}
		}
	},
}

func init() {
	timerCmd.AddCommand(timerStartCmd)
	timerCmd.AddCommand(timerPauseCmd)
	timerCmd.AddCommand(timerStatusCmd)
	timerCmd.AddCommand(timerWatchCmd)
}

// statusLine redraws one terminal line. The controller's tick goroutine and
// the poll loop both render, so writes are serialized.
type statusLine struct {
	mu    sync.Mutex
	w     io.Writer
	title string
}

func (l *statusLine) render(s domain.TaskTimerState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "\r%s  %-9s  session %s  total %s ",
		truncate(l.title, 30),
		s.State,
		timecalc.FormatSeconds(s.ElapsedTime),
		timecalc.FormatSeconds(s.TotalTimeSpent+s.ElapsedTime),
	)
}

// finish ends the line so the shell prompt starts clean
func (l *statusLine) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w)
}
