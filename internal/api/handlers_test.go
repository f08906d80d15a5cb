package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/service"
	"github.com/charmbracelet/log"
)

// fakeService is a scripted service.TimerService
type fakeService struct {
	task    *domain.Task
	err     error
	lastID  string
	created string
	status  domain.TaskStatus
}

func (f *fakeService) CreateTask(ctx context.Context, title string, status domain.TaskStatus) (*domain.Task, error) {
	f.created, f.status = title, status
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Task{ID: "new", Title: title, Status: status}, nil
}
func (f *fakeService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	f.lastID = id
	return f.task, f.err
}
func (f *fakeService) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Task{*f.task}, nil
}
func (f *fakeService) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) (*domain.Task, error) {
	f.lastID, f.status = id, status
	return f.task, f.err
}
func (f *fakeService) StartTimer(ctx context.Context, id string) (*domain.Task, error) {
	f.lastID = id
	return f.task, f.err
}
func (f *fakeService) PauseTimer(ctx context.Context, id string) (*domain.Task, error) {
	f.lastID = id
	return f.task, f.err
}

func newTestServer(t *testing.T, svc service.TimerService, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(svc, token, log.New(io.Discard)))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	json.Unmarshal(data, &out)
	return resp, out
}

func TestStartTimerRoute(t *testing.T) {
	svc := &fakeService{task: &domain.Task{
		ID:       "t1",
		Status:   domain.TaskStatusOngoing,
		TimeLogs: []domain.TimeLog{{ID: "l1", Start: "2025-01-01T00:00:00Z"}},
	}}
	srv := newTestServer(t, svc, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/api/tasks/t1/timer/start", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if svc.lastID != "t1" {
		t.Errorf("service got id %q", svc.lastID)
	}
	logs, _ := body["timeLogs"].([]interface{})
	if len(logs) != 1 {
		t.Errorf("timeLogs = %v", body["timeLogs"])
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrTaskNotFound, http.StatusNotFound},
		{service.ErrTimerAlreadyRunning, http.StatusConflict},
		{service.ErrTimerNotRunning, http.StatusConflict},
		{service.ErrTaskNotOngoing, http.StatusConflict},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		srv := newTestServer(t, &fakeService{err: tt.err}, "")
		resp, body := do(t, http.MethodPost, srv.URL+"/api/tasks/t1/timer/pause", "", "")
		if resp.StatusCode != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, resp.StatusCode, tt.want)
		}
		if body["error"] == nil || body["error"] == "" {
			t.Errorf("%v: no error message in body", tt.err)
		}
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	srv := newTestServer(t, &fakeService{err: io.ErrUnexpectedEOF}, "")
	_, body := do(t, http.MethodGet, srv.URL+"/api/tasks/t1", "", "")
	if body["error"] != "Internal server error" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUpdateStatusParsesStatus(t *testing.T) {
	svc := &fakeService{task: &domain.Task{ID: "t1", Status: domain.TaskStatusDone}}
	srv := newTestServer(t, svc, "")

	resp, _ := do(t, http.MethodPut, srv.URL+"/api/tasks/t1/status", "", `{"status":"done"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if svc.status != domain.TaskStatusDone {
		t.Errorf("service got status %q", svc.status)
	}

	resp, _ = do(t, http.MethodPut, srv.URL+"/api/tasks/t1/status", "", `{"status":"sideways"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad status code = %d, want 400", resp.StatusCode)
	}
}

func TestCreateTask(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "")

	resp, body := do(t, http.MethodPost, srv.URL+"/api/tasks", "", `{"title":"Plan","status":"ongoing"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if svc.created != "Plan" || svc.status != domain.TaskStatusOngoing {
		t.Errorf("service got %q %q", svc.created, svc.status)
	}
	if body["id"] != "new" {
		t.Errorf("body = %v", body)
	}

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/tasks", "", `{"title":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	svc := &fakeService{task: &domain.Task{ID: "t1"}}
	srv := newTestServer(t, svc, "s3cret")

	resp, _ := do(t, http.MethodGet, srv.URL+"/api/tasks", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/tasks", "wrong", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", resp.StatusCode)
	}
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/tasks", "s3cret", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("good token status = %d, want 200", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, srv.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}
