package app

import (
	"context"
	"fmt"
	"net/http"
	"syscall"

	"github.com/andy/tasktimer/internal/api"
	"github.com/andy/tasktimer/internal/client"
	"github.com/andy/tasktimer/internal/config"
	"github.com/andy/tasktimer/internal/crypto"
	"github.com/andy/tasktimer/internal/db"
	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/events"
	"github.com/andy/tasktimer/internal/repository"
	"github.com/andy/tasktimer/internal/service"
	"github.com/andy/tasktimer/internal/taskquery"
	"github.com/andy/tasktimer/internal/timer"
	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"golang.org/x/term"
)

// Server is the dependency container for the reference task API
type Server struct {
	Config *config.Config
	DB     *db.DB
	Logger *log.Logger

	// Repositories
	TaskRepo    repository.TaskRepository
	TimeLogRepo repository.TimeLogRepository

	// Services
	TimerService service.TimerService

	Handler http.Handler
}

// NewServer opens the database and wires the API. With insecure set the
// database is opened without encryption and no key is requested.
func NewServer(ctx context.Context, cfg *config.Config, logger *log.Logger, insecure bool) (*Server, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	password := ""
	if !insecure {
		var err error
		if password, err = databaseKey(); err != nil {
			return nil, err
		}
	}

	database, err := db.Open(cfg.Database.Path, password)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	taskRepo := repository.NewTaskRepo(database)
	logRepo := repository.NewTimeLogRepo(database)
	timerService := service.NewTimerService(taskRepo, logRepo, clockwork.NewRealClock())

	return &Server{
		Config:       cfg,
		DB:           database,
		Logger:       logger,
		TaskRepo:     taskRepo,
		TimeLogRepo:  logRepo,
		TimerService: timerService,
		Handler:      api.NewRouter(timerService, cfg.Server.AuthToken, logger),
	}, nil
}

// Close cleanly shuts down the server's resources
func (s *Server) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// databaseKey returns the stored database key, prompting for a new one on
// first run
func databaseKey() (string, error) {
	keyring := crypto.NewKeyring()

	password, err := keyring.Get(crypto.KeyDBEncryption)
	if err == nil {
		return password, nil
	}

	fmt.Println("Setting up database encryption for the first time...")
	password, err = promptForPassword()
	if err != nil {
		return "", fmt.Errorf("failed to set password: %w", err)
	}
	if err := keyring.Set(crypto.KeyDBEncryption, password); err != nil {
		return "", fmt.Errorf("failed to store encryption key: %w", err)
	}
	return password, nil
}

// promptForPassword prompts for a new database password (first run)
func promptForPassword() (string, error) {
	fmt.Println()
	fmt.Println("Task and time-log data will be encrypted with a password.")
	fmt.Println("This password will be stored securely in your system keyring.")
	fmt.Println()
	fmt.Print("Enter a password for database encryption: ")

	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(password) != string(confirm) {
		return "", fmt.Errorf("passwords do not match")
	}

	fmt.Println()
	fmt.Println("✓ Database encryption configured successfully")
	fmt.Println()

	return string(password), nil
}

// Client is the dependency container shared by every timer consumer of one
// session: one API client, one event bus, one task query.
type Client struct {
	Config *config.Config
	Logger *log.Logger
	Clock  clockwork.Clock

	API   *client.Client
	Bus   *events.TimerBus
	Query *taskquery.Query
}

// NewClient wires the client-side timer stack
func NewClient(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	token := cfg.API.Token
	if token == "" {
		if t, err := crypto.NewKeyring().Get(crypto.KeyAPIToken); err == nil {
			token = t
		} else {
			logger.Debug("no API token configured", "err", err)
		}
	}

	clock := clockwork.NewRealClock()
	apiClient := client.New(ctx, cfg.API.BaseURL, token, cfg.API.RequestTimeout)

	return &Client{
		Config: cfg,
		Logger: logger,
		Clock:  clock,
		API:    apiClient,
		Bus:    events.NewTimerBus(),
		Query:  taskquery.New(apiClient, clock, cfg.API.PollInterval),
	}, nil
}

// NewController builds a timer controller for one consumer of task
func (c *Client) NewController(task domain.Task, source string, notifier timer.Notifier, onChange func(domain.TaskTimerState)) *timer.Controller {
	return timer.New(timer.Deps{
		Backend:  c.API,
		Notifier: notifier,
		Clock:    c.Clock,
		Bus:      c.Bus,
		Query:    c.Query,
		Logger:   c.Logger.With("consumer", source),
		Timeout:  c.Config.API.RequestTimeout,
		Source:   source,
		OnChange: onChange,
	}, task)
}

// Close releases subscribers
func (c *Client) Close() {
	c.Query.Close()
	c.Bus.Close()
}
