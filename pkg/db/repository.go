package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mklimuk/vault-recur/pkg/task"
)

// Repository handles data access
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Ensure Repository can back the engine's run history
var _ task.Recorder = (*Repository)(nil)

const runColumns = `id, path, action, status, rule_key, fuzzy, new_due, new_path, archive_path, error, started_at, finished_at`

// RecordRun stores one engine result. Recording the same ID twice replaces
// the earlier row.
func (r *Repository) RecordRun(res *task.Result) error {
	query := `INSERT OR REPLACE INTO process_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query,
		res.ID, res.Path, string(res.Action), string(res.Status),
		res.RuleKey, res.Fuzzy, res.NewDue, res.NewPath, res.ArchivePath, res.Error,
		res.StartedAt.UTC(), res.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(limit int) ([]task.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM process_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`
	return r.queryRuns(query, limit)
}

// ListRunsForPath returns the most recent runs for one note path.
func (r *Repository) ListRunsForPath(path string, limit int) ([]task.Result, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM process_runs WHERE path = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`
	return r.queryRuns(query, path, limit)
}

// GetRun returns the run with id, or nil if there is none.
func (r *Repository) GetRun(id string) (*task.Result, error) {
	query := `SELECT ` + runColumns + ` FROM process_runs WHERE id = ?`
	res, err := scanRun(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return res, nil
}

// CountByStatus returns how many runs ended in each status.
func (r *Repository) CountByStatus() (map[task.Status]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM process_runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[task.Status(status)] = n
	}
	return counts, rows.Err()
}

// PruneBefore deletes runs that started before t and returns how many went.
func (r *Repository) PruneBefore(t time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM process_runs WHERE started_at < ?`, t.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) queryRuns(query string, args ...interface{}) ([]task.Result, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []task.Result
	for rows.Next() {
		res, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *res)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*task.Result, error) {
	var res task.Result
	var action, status string
	err := s.Scan(&res.ID, &res.Path, &action, &status, &res.RuleKey, &res.Fuzzy,
		&res.NewDue, &res.NewPath, &res.ArchivePath, &res.Error, &res.StartedAt, &res.FinishedAt)
	if err != nil {
		return nil, err
	}
	res.Action = task.Action(action)
	res.Status = task.Status(status)
	return &res, nil
}
