package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mklimuk/vault-recur/pkg/config"
	"github.com/mklimuk/vault-recur/pkg/lock"
	"github.com/mklimuk/vault-recur/pkg/notify"
	"github.com/mklimuk/vault-recur/pkg/recurrence"
	"github.com/mklimuk/vault-recur/pkg/schedule"
	"github.com/mklimuk/vault-recur/pkg/vault"
)

// Engine processes and archives task notes. Operations on different paths
// may run concurrently; operations on the same path are serialized by the
// lock registry and a second caller gets StatusBusy.
type Engine struct {
	store     vault.Storage
	locks     *lock.Registry
	notifier  notify.Sink
	recorder  Recorder
	syncer    Syncer
	confirmer Confirmer
	logger    *slog.Logger
	now       func() time.Time
	location  *time.Location

	mu       sync.RWMutex
	settings config.Settings
	matcher  *recurrence.Matcher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocks shares a lock registry, e.g. with a Sweeper.
func WithLocks(r *lock.Registry) Option {
	return func(e *Engine) { e.locks = r }
}

// WithNotifier sets where outcome messages go.
func WithNotifier(s notify.Sink) Option {
	return func(e *Engine) { e.notifier = s }
}

// WithRecorder stores every non-skipped result.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSyncer publishes changes after each successful operation.
func WithSyncer(s Syncer) Option {
	return func(e *Engine) { e.syncer = s }
}

// WithConfirmer is consulted by HandleChange when ConfirmOnRecur is set.
func WithConfirmer(c Confirmer) Option {
	return func(e *Engine) { e.confirmer = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces the wall clock used for created dates, archive folders
// and empty due dates.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the time zone dates are parsed and formatted in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// NewEngine creates an engine over store using settings.
func NewEngine(store vault.Storage, settings config.Settings, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: notify.Discard{},
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = lock.NewRegistry()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.UpdateSettings(settings)
	return e
}

// UpdateSettings swaps the settings and rebuilds the rule matcher before
// returning. Operations already running keep the settings they started with.
func (e *Engine) UpdateSettings(s config.Settings) {
	s = s.Clone()
	m := recurrence.NewMatcher(s.RecurrenceRules)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	e.matcher = m
	e.logger.Debug("task: settings updated", "rules", len(m.Rules()))
}

// Settings returns the current settings.
func (e *Engine) Settings() config.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Clone()
}

// Matcher returns the current rule matcher.
func (e *Engine) Matcher() *recurrence.Matcher {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.matcher
}

// Locks returns the engine's lock registry.
func (e *Engine) Locks() *lock.Registry {
	return e.locks
}

type snapshot struct {
	settings config.Settings
	matcher  *recurrence.Matcher
}

func (e *Engine) snapshot() snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return snapshot{settings: e.settings, matcher: e.matcher}
}

func (e *Engine) calculator() *schedule.Calculator {
	return &schedule.Calculator{Now: e.now, Location: e.location}
}

// IsEligible reports whether fm describes a completed, unarchived task with
// a recurrence. Completed and archived must be real booleans; the string
// "true" does not count.
func (e *Engine) IsEligible(fm vault.Frontmatter) bool {
	return isEligible(e.snapshot().settings.Fields, fm)
}

func isEligible(f config.FieldNames, fm vault.Frontmatter) bool {
	return fm.Bool(f.Completed) && !fm.Bool(f.Archived) && fm.Truthy(f.Recurrence)
}

// ShouldProcess reports whether path is free and fm is eligible.
func (e *Engine) ShouldProcess(path string, fm vault.Frontmatter) bool {
	return !e.locks.IsLocked(path) && e.IsEligible(fm)
}

// HandleChange reacts to a modified note. Ineligible or unreadable notes are
// skipped without notification. When ConfirmOnRecur is set and a Confirmer is
// configured it decides between recurring, archiving only and doing nothing;
// otherwise the note recurs with the CopySubtasks setting.
func (e *Engine) HandleChange(path string) (*Result, error) {
	snap := e.snapshot()

	note, err := vault.ReadNote(e.store, path)
	if err != nil {
		e.logger.Debug("task: skipping unreadable note", "path", path, "err", err)
		return e.skipped(path), nil
	}
	if !e.ShouldProcess(path, note.Frontmatter) {
		return e.skipped(path), nil
	}

	answer := Answer{Decision: DecisionRecur, CopySubtasks: snap.settings.CopySubtasks}
	if snap.settings.ConfirmOnRecur && e.confirmer != nil {
		answer, err = e.confirmer.Confirm(path, note.Frontmatter)
		if err != nil {
			res := e.newResult(path, ActionProcess)
			return e.fail(res, fmt.Errorf("confirmation failed: %w", err))
		}
	}

	switch answer.Decision {
	case DecisionRecur:
		return e.Process(path, true, answer.CopySubtasks)
	case DecisionArchive:
		return e.Process(path, false, false)
	default:
		res := e.newResult(path, ActionProcess)
		res.Status = StatusCancelled
		e.finish(res)
		e.logger.Info("task: recurrence cancelled", "path", path)
		return res, nil
	}
}

func (e *Engine) skipped(path string) *Result {
	res := e.newResult(path, ActionProcess)
	res.Status = StatusSkipped
	res.FinishedAt = res.StartedAt
	return res
}

func (e *Engine) newResult(path string, action Action) *Result {
	return &Result{
		ID:        uuid.NewString(),
		Path:      path,
		Action:    action,
		StartedAt: e.now(),
	}
}

// finish stamps the result and hands it to the recorder.
func (e *Engine) finish(res *Result) {
	res.FinishedAt = e.now()
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordRun(res); err != nil {
		e.logger.Warn("task: failed to record run", "id", res.ID, "err", err)
	}
}

func (e *Engine) fail(res *Result, err error) (*Result, error) {
	res.Status = StatusFailed
	res.Error = err.Error()
	e.logger.Error("task: operation failed", "path", res.Path, "action", res.Action, "err", err)
	e.notifier.Notify(notify.Errorf("Error: %v", err))
	e.finish(res)
	return res, err
}

func (e *Engine) publish(res *Result) {
	if e.syncer == nil {
		return
	}
	msg := fmt.Sprintf("recur: %s %s", res.Status, res.Path)
	if res.NewPath != "" {
		msg += " -> " + res.NewPath
	}
	if err := e.syncer.Sync(msg); err != nil {
		e.logger.Warn("task: vault sync failed", "err", err)
	}
}
