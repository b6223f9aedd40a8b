package store

import (
	"testing"
	"time"

	"github.com/hochfrequenz/flowctl/internal/domain"
)

func TestRuntimeStore_LoadMissingThenSaveAndReload(t *testing.T) {
	s := NewRuntimeStore(testPaths(t))

	_, has, err := s.LoadRuntime("fn-1.1")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("expected no runtime file before any save")
	}

	now := time.Now().Truncate(time.Second)
	rt := domain.NewRuntime(now)
	if err := s.SaveRuntime("fn-1.1", rt); err != nil {
		t.Fatal(err)
	}

	got, has, err := s.LoadRuntime("fn-1.1")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("expected a runtime file after save")
	}
	if got.Status != domain.TaskTodo {
		t.Errorf("Status = %q, want todo", got.Status)
	}
}

func TestRuntimeStore_ResetAndDelete(t *testing.T) {
	s := NewRuntimeStore(testPaths(t))
	actor := "alice"
	if err := s.SaveRuntime("fn-1.1", domain.Runtime{Status: domain.TaskInProgress, Assignee: &actor}); err != nil {
		t.Fatal(err)
	}

	if err := s.ResetRuntime("fn-1.1", time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.LoadRuntime("fn-1.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.TaskTodo || got.Assignee != nil {
		t.Errorf("after ResetRuntime = %+v, want todo/unassigned", got)
	}

	if err := s.DeleteRuntime("fn-1.1"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRuntime("fn-1.1"); err != nil {
		t.Fatalf("deleting an already-deleted runtime should be a no-op, got %v", err)
	}
}

func TestRuntimeStore_WithLock_SerializesAccess(t *testing.T) {
	s := NewRuntimeStore(testPaths(t))

	var order []int
	done := make(chan struct{})
	go func() {
		_ = s.WithLock("fn-1.1", func() error {
			order = append(order, 1)
			return nil
		})
		close(done)
	}()
	<-done

	if err := s.WithLock("fn-1.1", func() error {
		order = append(order, 2)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("order = %v, want sequential [1 2]", order)
	}
}

func TestMergedStatusFromDef(t *testing.T) {
	def := domain.TaskDef{UpdatedAt: time.Now()}

	t.Run("prefers real runtime when present", func(t *testing.T) {
		rt := domain.Runtime{Status: domain.TaskBlocked}
		got := MergedStatusFromDef(def, rt, true)
		if got.Status != domain.TaskBlocked {
			t.Errorf("Status = %q, want blocked", got.Status)
		}
	})

	t.Run("falls back to legacy fields", func(t *testing.T) {
		legacyAssignee := "bob"
		legacyDef := def
		legacyDef.LegacyStatus = domain.TaskInProgress
		legacyDef.LegacyAssignee = &legacyAssignee

		got := MergedStatusFromDef(legacyDef, domain.Runtime{}, false)
		if got.Status != domain.TaskInProgress {
			t.Errorf("Status = %q, want in_progress", got.Status)
		}
		if got.Assignee == nil || *got.Assignee != "bob" {
			t.Errorf("Assignee = %v, want bob", got.Assignee)
		}
	})

	t.Run("defaults to todo with no runtime and no legacy fields", func(t *testing.T) {
		got := MergedStatusFromDef(def, domain.Runtime{}, false)
		if got.Status != domain.TaskTodo {
			t.Errorf("Status = %q, want todo", got.Status)
		}
	})
}
