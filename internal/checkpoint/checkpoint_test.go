package checkpoint

import (
	"testing"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/lifecycle"
	"github.com/hochfrequenz/flowctl/internal/store"
)

func newTestStore(t *testing.T) (*store.Store, *lifecycle.Engine) {
	t.Helper()
	root := t.TempDir()
	paths := atomicio.Paths{RepoRoot: root, FlowDir: root + "/.flow", StateDir: root + "/.flow/state"}
	s := store.New(paths)
	if err := s.Def.Init(); err != nil {
		t.Fatal(err)
	}
	return s, lifecycle.New(s, "tester")
}

func TestSaveAndRestore_RoundTrip(t *testing.T) {
	s, e := newTestStore(t)
	epic, err := e.CreateEpic(lifecycle.CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := e.CreateTask(lifecycle.CreateTaskOptions{EpicID: epic.ID.String(), Title: "Task"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Start(task.ID.String(), lifecycle.StartOptions{}); err != nil {
		t.Fatal(err)
	}

	cp, err := Save(s, epic.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.Tasks) != 1 {
		t.Fatalf("Tasks = %v, want 1 entry", cp.Tasks)
	}

	// Mutate state after the snapshot.
	if _, err := e.Done(task.ID.String(), lifecycle.DoneOptions{Summary: "done"}); err != nil {
		t.Fatal(err)
	}
	status, err := s.MergedStatusOf(task.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if status != domain.TaskDone {
		t.Fatal("expected the task to be done before restore")
	}

	if _, err := Restore(s, epic.ID.String()); err != nil {
		t.Fatal(err)
	}
	status, err = s.MergedStatusOf(task.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if status != domain.TaskInProgress {
		t.Errorf("status after restore = %q, want in_progress (the snapshot's state)", status)
	}
}

func TestRestore_MissingCheckpoint(t *testing.T) {
	s, _ := newTestStore(t)
	if _, err := Restore(s, "fn-1"); flowerr.KindOf(err) != flowerr.KindNotFound {
		t.Errorf("KindOf = %v, want KindNotFound", flowerr.KindOf(err))
	}
}

func TestDelete_MissingIsNoOp(t *testing.T) {
	s, _ := newTestStore(t)
	if err := Delete(s, "fn-1"); err != nil {
		t.Errorf("Delete on a nonexistent checkpoint should be a no-op, got %v", err)
	}
}

func TestSaveThenDelete(t *testing.T) {
	s, e := newTestStore(t)
	epic, err := e.CreateEpic(lifecycle.CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Save(s, epic.ID.String()); err != nil {
		t.Fatal(err)
	}
	if !atomicio.Exists(s.Def.Paths.CheckpointFile(epic.ID.String())) {
		t.Fatal("expected a checkpoint file after Save")
	}
	if err := Delete(s, epic.ID.String()); err != nil {
		t.Fatal(err)
	}
	if atomicio.Exists(s.Def.Paths.CheckpointFile(epic.ID.String())) {
		t.Error("expected the checkpoint file to be gone after Delete")
	}
}
