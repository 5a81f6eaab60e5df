package storage

import (
	"path/filepath"
	"testing"
	"time"

	"dealwatch/models"
)

func newTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := newTestDB(t)

	run := &models.SearchRun{
		Keyword:   "wireless earbuds",
		Category:  "Electronics",
		MonitorID: "mon-1",
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected a row id")
	}
	run.ID = id

	finished := time.Now().UTC()
	run.Strategy = "http"
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.FragmentsFound = 48
	run.ProductsParsed = 45
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	runs, err := store.GetRecentRuns(10)
	if err != nil {
		t.Fatalf("get recent runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != id || got.Keyword != "wireless earbuds" || got.MonitorID != "mon-1" {
		t.Fatalf("unexpected run row: %+v", got)
	}
	if got.Status != models.RunStatusCompleted || got.Strategy != "http" {
		t.Fatalf("update not persisted: %+v", got)
	}
	if got.FragmentsFound != 48 || got.ProductsParsed != 45 {
		t.Fatalf("counts not persisted: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatalf("expected a finish time")
	}
}

func TestGetRecentRuns_OrderAndLimit(t *testing.T) {
	store := newTestDB(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := &models.SearchRun{
			Keyword:   "k",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Status:    models.RunStatusCompleted,
		}
		if _, err := store.CreateRun(run); err != nil {
			t.Fatalf("create run %d: %v", i, err)
		}
	}

	runs, err := store.GetRecentRuns(3)
	if err != nil {
		t.Fatalf("get recent runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Fatalf("runs not ordered newest first")
		}
	}
}

func TestCommandQueue(t *testing.T) {
	store := newTestDB(t)

	err := store.EnqueueCommand(models.CmdSearchNow, &models.CommandParams{
		Keyword:  "usb c hub",
		Category: "Electronics",
		MaxPages: 3,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.EnqueueCommand(models.CmdPause, nil); err != nil {
		t.Fatalf("enqueue without params: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 pending commands, got %d", len(cmds))
	}

	var searchCmd *models.Command
	for i := range cmds {
		if cmds[i].Command == models.CmdSearchNow {
			searchCmd = &cmds[i]
		}
	}
	if searchCmd == nil {
		t.Fatalf("search_now command missing from queue")
	}

	params, err := store.ParseCommandParams(searchCmd)
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params.Keyword != "usb c hub" || params.MaxPages != 3 {
		t.Fatalf("unexpected params: %+v", params)
	}

	if err := store.MarkCommandProcessed(searchCmd.ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	remaining, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending after processing: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Command != models.CmdPause {
		t.Fatalf("expected only the pause command pending, got %+v", remaining)
	}
}

func TestLog_NeverFailsWithoutRun(t *testing.T) {
	store := newTestDB(t)

	store.Log(nil, models.LogLevelWarn, "standalone message")

	id := int64(12345)
	store.Log(&id, models.LogLevelError, "fetch stage failed")
}
