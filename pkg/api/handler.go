package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mklimuk/vault-recur/pkg/recurrence"
	"github.com/mklimuk/vault-recur/pkg/schedule"
	"github.com/mklimuk/vault-recur/pkg/task"
)

// RunLister reads the run history.
type RunLister interface {
	ListRuns(limit int) ([]task.Result, error)
	ListRunsForPath(path string, limit int) ([]task.Result, error)
	GetRun(id string) (*task.Result, error)
	CountByStatus() (map[task.Status]int, error)
}

// Handler holds dependencies for API handlers
type Handler struct {
	Engine *task.Engine
	Runs   RunLister
	Logger *slog.Logger

	validator *validator.Validate
}

// ProcessRequest is the payload of POST /tasks/process. Without Recur the
// note goes through the same checks as a file change.
type ProcessRequest struct {
	Path         string `json:"path" validate:"required"`
	Recur        *bool  `json:"recur,omitempty"`
	CopySubtasks *bool  `json:"copy_subtasks,omitempty"`
}

// ArchiveRequest is the payload of POST /tasks/archive.
type ArchiveRequest struct {
	Path string `json:"path" validate:"required"`
}

// ResolveRequest is the payload of POST /rules/resolve.
type ResolveRequest struct {
	Value string `json:"value"`
}

// ResolveResponse reports how a recurrence value resolves.
type ResolveResponse struct {
	Found bool             `json:"found"`
	Rule  *recurrence.Rule `json:"rule,omitempty"`
	Exact bool             `json:"exact"`
	Score float64          `json:"score"`
}

// LockResponse describes one held lock.
type LockResponse struct {
	Path       string    `json:"path"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// HandleProcess handles POST /tasks/process
func (h *Handler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !validPath(req.Path) {
		respondWithError(w, http.StatusBadRequest, "path must be relative to the vault")
		return
	}

	var res *task.Result
	var err error
	if req.Recur == nil {
		res, err = h.Engine.HandleChange(req.Path)
	} else {
		copySubtasks := h.Engine.Settings().CopySubtasks
		if req.CopySubtasks != nil {
			copySubtasks = *req.CopySubtasks
		}
		res, err = h.Engine.Process(req.Path, *req.Recur, copySubtasks)
	}
	h.respondWithResult(w, res, err)
}

// HandleArchive handles POST /tasks/archive
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !validPath(req.Path) {
		respondWithError(w, http.StatusBadRequest, "path must be relative to the vault")
		return
	}
	res, err := h.Engine.Archive(req.Path)
	h.respondWithResult(w, res, err)
}

// HandleListRules handles GET /rules
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	rules := h.Engine.Settings().RecurrenceRules
	if r.URL.Query().Get("enabled") == "true" {
		rules = h.Engine.Matcher().Rules()
	}
	respondWithJSON(w, http.StatusOK, rules)
}

// HandleResolveRule handles POST /rules/resolve
func (h *Handler) HandleResolveRule(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}
	match, ok := h.Engine.Matcher().Resolve(req.Value)
	resp := ResolveResponse{Found: ok}
	if ok {
		rule := match.Rule
		resp.Rule = &rule
		resp.Exact = match.Exact
		resp.Score = match.Score
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// HandleRunStats handles GET /runs/stats
func (h *Handler) HandleRunStats(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		respondWithError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	counts, err := h.Runs.CountByStatus()
	if err != nil {
		h.Logger.Error("api: failed to count runs", "err", err)
		respondWithError(w, http.StatusInternalServerError, "failed to count runs")
		return
	}
	respondWithJSON(w, http.StatusOK, counts)
}

// HandleListRuns handles GET /runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		respondWithError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var runs []task.Result
	var err error
	if p := r.URL.Query().Get("path"); p != "" {
		runs, err = h.Runs.ListRunsForPath(p, limit)
	} else {
		runs, err = h.Runs.ListRuns(limit)
	}
	if err != nil {
		h.Logger.Error("api: failed to list runs", "err", err)
		respondWithError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []task.Result{}
	}
	respondWithJSON(w, http.StatusOK, runs)
}

// HandleGetRun handles GET /runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.Runs == nil {
		respondWithError(w, http.StatusNotFound, "run history is disabled")
		return
	}
	run, err := h.Runs.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		h.Logger.Error("api: failed to get run", "err", err)
		respondWithError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		respondWithError(w, http.StatusNotFound, "run not found")
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

// HandleListLocks handles GET /locks
func (h *Handler) HandleListLocks(w http.ResponseWriter, r *http.Request) {
	held := h.Engine.Locks().Held()
	locks := make([]LockResponse, 0, len(held))
	for p, at := range held {
		locks = append(locks, LockResponse{Path: p, AcquiredAt: at})
	}
	respondWithJSON(w, http.StatusOK, locks)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) respondWithResult(w http.ResponseWriter, res *task.Result, err error) {
	if res == nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, statusFor(res, err), res)
}

func statusFor(res *task.Result, err error) int {
	switch {
	case err == nil && res.Status == task.StatusBusy:
		return http.StatusConflict
	case err == nil:
		return http.StatusOK
	case errors.Is(err, schedule.ErrInvalidDate), errors.Is(err, schedule.ErrInvalidRule):
		return http.StatusUnprocessableEntity
	case errors.Is(err, task.ErrCollisionExhausted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}

func respondWithJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, status int, msg string) {
	respondWithJSON(w, status, map[string]string{"error": msg})
}
