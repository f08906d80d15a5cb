package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/andy/tasktimer/internal/service"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs each request through logger once it completes
func RequestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// BearerAuth rejects requests without the expected bearer token. An empty
// token disables the check.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte("Bearer " + token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeErrorJSON(w, http.StatusUnauthorized, "Missing or invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the task API
func NewRouter(svc service.TimerService, authToken string, logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(BearerAuth(authToken))

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", HandleListTasks(svc))
			r.Post("/", HandleCreateTask(svc))
			r.Route("/{taskID}", func(r chi.Router) {
				r.Get("/", HandleGetTask(svc))
				r.Put("/status", HandleUpdateStatus(svc))
				r.Post("/timer/start", HandleStartTimer(svc))
				r.Post("/timer/pause", HandlePauseTimer(svc))
			})
		})
	})

	return r
}
