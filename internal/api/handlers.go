package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andy/tasktimer/internal/domain"
	"github.com/andy/tasktimer/internal/service"
	"github.com/go-chi/chi/v5"
)

type createTaskRequest struct {
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// HandleListTasks returns every task with its time logs
func HandleListTasks(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tasks, err := svc.ListTasks(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

// HandleCreateTask creates a task
func HandleCreateTask(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if err := decodeBody(r, &req); err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "Invalid task data")
			return
		}

		var status domain.TaskStatus
		if req.Status != "" {
			parsed, err := domain.ParseTaskStatus(req.Status)
			if err != nil {
				writeErrorJSON(w, http.StatusBadRequest, err.Error())
				return
			}
			status = parsed
		}

		task, err := svc.CreateTask(r.Context(), req.Title, status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

// HandleGetTask returns one task
func HandleGetTask(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetTask(r.Context(), chi.URLParam(r, "taskID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// HandleUpdateStatus changes a task's status
func HandleUpdateStatus(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := decodeBody(r, &req); err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "Invalid status data")
			return
		}
		status, err := domain.ParseTaskStatus(req.Status)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, err.Error())
			return
		}

		task, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "taskID"), status)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// HandleStartTimer opens an interval
func HandleStartTimer(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.StartTimer(r.Context(), chi.URLParam(r, "taskID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

// HandlePauseTimer closes the open interval
func HandlePauseTimer(svc service.TimerService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.PauseTimer(r.Context(), chi.URLParam(r, "taskID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTimerAlreadyRunning),
		errors.Is(err, service.ErrTimerNotRunning),
		errors.Is(err, service.ErrTaskNotOngoing):
		return http.StatusConflict
	case errors.Is(err, service.ErrTitleRequired),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	writeErrorJSON(w, code, msg)
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
