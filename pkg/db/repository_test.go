package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mklimuk/vault-recur/pkg/task"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	database, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewRepository(database)
}

func run(id, path string, status task.Status, started time.Time) *task.Result {
	return &task.Result{
		ID:         id,
		Path:       path,
		Action:     task.ActionProcess,
		Status:     status,
		StartedAt:  started,
		FinishedAt: started.Add(50 * time.Millisecond),
	}
}

func TestRecordAndGetRun(t *testing.T) {
	repo := setupTestDB(t)
	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	res := run("run-1", "Tasks/Pay rent 2024-03-01.md", task.StatusProcessed, started)
	res.RuleKey = "monthly"
	res.Fuzzy = true
	res.NewDue = "2024-04-01"
	res.NewPath = "Tasks/Pay rent 2024-04-01.md"
	res.ArchivePath = "Archive/Tasks/2024/03/Pay rent 2024-03-01.md"

	if err := repo.RecordRun(res); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := repo.GetRun("run-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Status != task.StatusProcessed || got.Action != task.ActionProcess {
		t.Errorf("status/action = %q/%q", got.Status, got.Action)
	}
	if got.RuleKey != "monthly" || !got.Fuzzy {
		t.Errorf("rule = %q fuzzy = %v", got.RuleKey, got.Fuzzy)
	}
	if got.NewPath != res.NewPath || got.ArchivePath != res.ArchivePath || got.NewDue != res.NewDue {
		t.Errorf("paths = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started = %v, want %v", got.StartedAt, started)
	}
	if !got.FinishedAt.Equal(res.FinishedAt) {
		t.Errorf("finished = %v, want %v", got.FinishedAt, res.FinishedAt)
	}

	missing, err := repo.GetRun("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing run, got %+v", missing)
	}
}

func TestListRuns(t *testing.T) {
	repo := setupTestDB(t)
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	runs := []*task.Result{
		run("a", "Tasks/a.md", task.StatusProcessed, base),
		run("b", "Tasks/b.md", task.StatusBusy, base.Add(time.Minute)),
		run("c", "Tasks/a.md", task.StatusFailed, base.Add(2*time.Minute)),
	}
	runs[2].Error = "invalid date"
	for _, r := range runs {
		if err := repo.RecordRun(r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}

	all, err := repo.ListRuns(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("order = %s,%s,%s", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[0].Error != "invalid date" {
		t.Errorf("error = %q", all[0].Error)
	}

	limited, err := repo.ListRuns(1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Errorf("limited = %+v", limited)
	}

	forPath, err := repo.ListRunsForPath("Tasks/a.md", 0)
	if err != nil {
		t.Fatalf("list for path: %v", err)
	}
	if len(forPath) != 2 || forPath[0].ID != "c" || forPath[1].ID != "a" {
		t.Errorf("for path = %+v", forPath)
	}

	counts, err := repo.CountByStatus()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[task.StatusProcessed] != 1 || counts[task.StatusBusy] != 1 || counts[task.StatusFailed] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRecordRunReplacesSameID(t *testing.T) {
	repo := setupTestDB(t)
	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	if err := repo.RecordRun(run("x", "Tasks/x.md", task.StatusFailed, started)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := repo.RecordRun(run("x", "Tasks/x.md", task.StatusProcessed, started)); err != nil {
		t.Fatalf("record again: %v", err)
	}

	all, err := repo.ListRuns(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Status != task.StatusProcessed {
		t.Errorf("runs = %+v", all)
	}
}

func TestPruneBefore(t *testing.T) {
	repo := setupTestDB(t)
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		if err := repo.RecordRun(run(id, "Tasks/a.md", task.StatusProcessed, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	n, err := repo.PruneBefore(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}
	all, _ := repo.ListRuns(0)
	if len(all) != 1 || all[0].ID != "new" {
		t.Errorf("remaining = %+v", all)
	}
}

func TestEngineRecordsIntoDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "runs.db")
	database, err := NewDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()
	if err := database.InitSchema(); err != nil {
		t.Fatalf("schema: %v", err)
	}
	repo := NewRepository(database)

	var recorder task.Recorder = repo
	if err := recorder.RecordRun(run("file-1", "Tasks/a.md", task.StatusArchived, time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := repo.GetRun("file-1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
}
