package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andy/tasktimer/internal/domain"
	"golang.org/x/oauth2"
)

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Client talks JSON to the task backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for baseURL. A non-empty token is sent as a bearer
// token on every request. timeout bounds each request; 0 means no limit.
func New(ctx context.Context, baseURL, token string, timeout time.Duration) *Client {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
		httpClient.Timeout = timeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type createTaskRequest struct {
	Title  string            `json:"title"`
	Status domain.TaskStatus `json:"status,omitempty"`
}

type statusRequest struct {
	Status domain.TaskStatus `json:"status"`
}

// ListTasks fetches every task with its time logs
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches one task
func (c *Client) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodGet, taskPath(taskID, ""), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task; an empty status lets the backend pick its default
func (c *Client) CreateTask(ctx context.Context, title string, status domain.TaskStatus) (*domain.Task, error) {
	var task domain.Task
	body := createTaskRequest{Title: title, Status: status}
	if err := c.do(ctx, http.MethodPost, "/api/tasks", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateStatus changes a task's status
func (c *Client) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPut, taskPath(taskID, "/status"), statusRequest{Status: status}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// StartTimer opens a new interval for the task
func (c *Client) StartTimer(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, "/timer/start"), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// PauseTimer closes the task's open interval
func (c *Client) PauseTimer(ctx context.Context, taskID string) (*domain.Task, error) {
	var task domain.Task
	if err := c.do(ctx, http.MethodPost, taskPath(taskID, "/timer/pause"), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func taskPath(taskID, suffix string) string {
	return "/api/tasks/" + url.PathEscape(taskID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
