// Package task runs the lifecycle of recurring task notes: when a completed
// task with a recurrence rule is seen, it creates the next occurrence and
// moves the completed note into the archive.
package task

import (
	"errors"
	"time"

	"github.com/mklimuk/vault-recur/pkg/vault"
)

// ErrCollisionExhausted is returned when no free numbered variant of a path
// exists within MaxCollisionAttempts.
var ErrCollisionExhausted = errors.New("could not find a unique file name")

// MaxCollisionAttempts caps the " (n)" suffix search.
const MaxCollisionAttempts = 1000

// Action names the operation a Result describes.
type Action string

const (
	ActionProcess Action = "process"
	ActionArchive Action = "archive"
)

// Status is the outcome of one engine operation.
type Status string

const (
	StatusProcessed Status = "processed"
	StatusArchived  Status = "archived"
	StatusBusy      Status = "busy"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// Result records what one operation did.
type Result struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Action      Action    `json:"action"`
	Status      Status    `json:"status"`
	RuleKey     string    `json:"rule_key,omitempty"`
	Fuzzy       bool      `json:"fuzzy,omitempty"`
	NewDue      string    `json:"new_due,omitempty"`
	NewPath     string    `json:"new_path,omitempty"`
	ArchivePath string    `json:"archive_path,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Recorder stores results, e.g. in the run history database.
type Recorder interface {
	RecordRun(r *Result) error
}

// Syncer publishes vault changes after a successful operation.
type Syncer interface {
	Sync(message string) error
}

// Decision is the user's answer to a recurrence confirmation.
type Decision int

const (
	// DecisionRecur creates the next instance and archives.
	DecisionRecur Decision = iota
	// DecisionArchive archives without creating a next instance.
	DecisionArchive
	// DecisionCancel leaves the note alone.
	DecisionCancel
)

func (d Decision) String() string {
	switch d {
	case DecisionRecur:
		return "recur"
	case DecisionArchive:
		return "archive"
	case DecisionCancel:
		return "cancel"
	}
	return "unknown"
}

// Answer is what a Confirmer returns.
type Answer struct {
	Decision     Decision
	CopySubtasks bool
}

// Confirmer asks whether a completed recurring task should recur.
type Confirmer interface {
	Confirm(path string, fm vault.Frontmatter) (Answer, error)
}

// AutoConfirmer always answers recur.
type AutoConfirmer struct {
	CopySubtasks bool
}

func (a AutoConfirmer) Confirm(string, vault.Frontmatter) (Answer, error) {
	return Answer{Decision: DecisionRecur, CopySubtasks: a.CopySubtasks}, nil
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(path string, fm vault.Frontmatter) (Answer, error)

func (f ConfirmerFunc) Confirm(path string, fm vault.Frontmatter) (Answer, error) {
	return f(path, fm)
}
