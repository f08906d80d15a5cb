package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andy/tasktimer/internal/app"
	"github.com/andy/tasktimer/internal/logging"
	"github.com/spf13/cobra"
)

var insecureDB bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task API",
	Long: `Serve the task and time-log REST API backed by an encrypted SQLite database.

The database key is read from the system keyring, and prompted for on first run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server, err := newServerApp(ctx)
		if err != nil {
			return err
		}
		defer server.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = server.Config.Server.Addr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.Handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			server.Logger.Info("listening", "addr", addr, "db", server.Config.Database.Path)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		server.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// newServerApp wires the backend stack with a stderr logger
func newServerApp(ctx context.Context) (*app.Server, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	server, err := app.NewServer(ctx, cfg, logger, insecureDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}
	return server, nil
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&insecureDB, "insecure-db", false, "open the database without encryption")
}
