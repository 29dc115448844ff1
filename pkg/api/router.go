package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/mklimuk/vault-recur/pkg/task"
)

// NewRouter creates a new HTTP router
func NewRouter(engine *task.Engine, runs RunLister, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		Engine:    engine,
		Runs:      runs,
		Logger:    logger,
		validator: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Post("/tasks/process", h.HandleProcess)
	r.Post("/tasks/archive", h.HandleArchive)
	r.Get("/rules", h.HandleListRules)
	r.Post("/rules/resolve", h.HandleResolveRule)
	r.Get("/runs", h.HandleListRuns)
	r.Get("/runs/stats", h.HandleRunStats)
	r.Get("/runs/{id}", h.HandleGetRun)
	r.Get("/locks", h.HandleListLocks)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("failed to write health check response", "err", err)
		}
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("api: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
