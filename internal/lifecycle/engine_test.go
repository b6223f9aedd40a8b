package lifecycle

import (
	"strings"
	"testing"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
)

func newTaskFixture(t *testing.T) (*Engine, string) {
	t.Helper()
	e := newTestEngine(t)
	epic, err := e.CreateEpic(CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "Do thing"})
	if err != nil {
		t.Fatal(err)
	}
	return e, task.ID.String()
}

func TestEngine_Start_ClaimsAndTransitions(t *testing.T) {
	e, taskID := newTaskFixture(t)

	mt, err := e.Start(taskID, StartOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if mt.Status != domain.TaskInProgress {
		t.Errorf("Status = %q, want in_progress", mt.Status)
	}
	if mt.Assignee == nil || *mt.Assignee != "tester" {
		t.Errorf("Assignee = %v, want tester", mt.Assignee)
	}
}

func TestEngine_Start_BlocksUnmetDependency(t *testing.T) {
	e := newTestEngine(t)
	epic, err := e.CreateEpic(CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	dep, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "First"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "Second", Deps: []string{dep.ID.String()}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Start(task.ID.String(), StartOptions{}); flowerr.KindOf(err) != flowerr.KindPrecondition {
		t.Errorf("KindOf = %v, want KindPrecondition", flowerr.KindOf(err))
	}

	if _, err := e.Start(task.ID.String(), StartOptions{Force: true}); err != nil {
		t.Errorf("--force should bypass the dependency gate, got %v", err)
	}
}

func TestEngine_Start_ClaimedByOtherRequiresForce(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Start(taskID, StartOptions{}); err != nil {
		t.Fatal(err)
	}

	other := New(e.Store, "someone-else")
	if _, err := other.Start(taskID, StartOptions{}); flowerr.KindOf(err) != flowerr.KindConcurrency {
		t.Errorf("KindOf = %v, want KindConcurrency", flowerr.KindOf(err))
	}

	mt, err := other.Start(taskID, StartOptions{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if mt.Assignee == nil || *mt.Assignee != "someone-else" {
		t.Errorf("Assignee after forced takeover = %v, want someone-else", mt.Assignee)
	}
	if mt.ClaimNote == "" {
		t.Error("expected a takeover note to be recorded")
	}
}

func TestEngine_Done_RequiresInProgress(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Done(taskID, DoneOptions{Summary: "Shipped."}); flowerr.KindOf(err) != flowerr.KindPrecondition {
		t.Errorf("KindOf = %v, want KindPrecondition", flowerr.KindOf(err))
	}
}

func TestEngine_Done_PatchesSpecAndRuntime(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Start(taskID, StartOptions{}); err != nil {
		t.Fatal(err)
	}

	evidence := domain.Evidence{Commits: []string{"abc123"}}
	mt, err := e.Done(taskID, DoneOptions{Summary: "Shipped the thing.", Evidence: evidence})
	if err != nil {
		t.Fatal(err)
	}
	if mt.Status != domain.TaskDone {
		t.Errorf("Status = %q, want done", mt.Status)
	}
	if mt.Evidence.IsEmpty() {
		t.Error("expected evidence to be recorded")
	}

	spec, err := e.Store.Def.LoadTaskSpec(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(spec, "Shipped the thing.") || !strings.Contains(spec, "abc123") {
		t.Errorf("expected spec to contain the done summary and evidence, got:\n%s", spec)
	}
}

func TestEngine_Block_RequiresNonEmptyReason(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Block(taskID, "   "); flowerr.KindOf(err) != flowerr.KindPrecondition {
		t.Errorf("KindOf = %v, want KindPrecondition", flowerr.KindOf(err))
	}
}

func TestEngine_Block_SetsBlockedReason(t *testing.T) {
	e, taskID := newTaskFixture(t)
	mt, err := e.Block(taskID, "waiting on credentials")
	if err != nil {
		t.Fatal(err)
	}
	if mt.Status != domain.TaskBlocked {
		t.Errorf("Status = %q, want blocked", mt.Status)
	}
	if mt.BlockedReas == nil || *mt.BlockedReas != "waiting on credentials" {
		t.Errorf("BlockedReas = %v, want waiting on credentials", mt.BlockedReas)
	}
}

func TestEngine_Reset_RejectsInProgress(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Start(taskID, StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reset(taskID, false); flowerr.KindOf(err) != flowerr.KindPrecondition {
		t.Errorf("KindOf = %v, want KindPrecondition", flowerr.KindOf(err))
	}
}

func TestEngine_Reset_BackToTodo(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Block(taskID, "blocked for now"); err != nil {
		t.Fatal(err)
	}

	results, err := e.Reset(taskID, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != domain.TaskTodo {
		t.Errorf("Reset results = %+v, want one todo task", results)
	}
}

func TestEngine_Reset_ClearsBlockTextFromDoneSummary(t *testing.T) {
	e, taskID := newTaskFixture(t)
	if _, err := e.Block(taskID, "waiting on credentials"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Reset(taskID, false); err != nil {
		t.Fatal(err)
	}

	spec, err := e.Store.Def.LoadTaskSpec(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(spec, "waiting on credentials") || strings.Contains(spec, "Blocked:") {
		t.Errorf("spec still carries block text after reset:\n%s", spec)
	}
}

func TestEngine_Reset_CascadeSkipsInProgressDependent(t *testing.T) {
	e := newTestEngine(t)
	epic, err := e.CreateEpic(CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	first, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "First"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "Second", Deps: []string{first.ID.String()}})
	if err != nil {
		t.Fatal(err)
	}
	third, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "Third", Deps: []string{first.ID.String()}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Start(first.ID.String(), StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Done(first.ID.String(), DoneOptions{Summary: "done"}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Start(second.ID.String(), StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Block(third.ID.String(), "waiting"); err != nil {
		t.Fatal(err)
	}

	results, err := e.Reset(first.ID.String(), true)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.ID.String()] = true
	}
	if found[second.ID.String()] {
		t.Error("expected the in_progress dependent to be skipped by the cascade, not errored or reset")
	}
	if !found[third.ID.String()] {
		t.Error("expected the blocked dependent to be reset by the cascade")
	}

	secondStatus, err := e.Store.MergedStatusOf(second.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if secondStatus != domain.TaskInProgress {
		t.Errorf("second task status = %q, want it left in_progress", secondStatus)
	}
}

func TestEngine_Reset_Cascade(t *testing.T) {
	e := newTestEngine(t)
	epic, err := e.CreateEpic(CreateEpicOptions{Title: "Fixture"})
	if err != nil {
		t.Fatal(err)
	}
	first, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "First"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.CreateTask(CreateTaskOptions{EpicID: epic.ID.String(), Title: "Second", Deps: []string{first.ID.String()}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Block(second.ID.String(), "waiting"); err != nil {
		t.Fatal(err)
	}

	results, err := e.Reset(first.ID.String(), true)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.ID.String()] = true
	}
	if !found[first.ID.String()] {
		t.Error("expected the reset target itself in the results")
	}
	if !found[second.ID.String()] {
		t.Error("expected the cascade to reset the dependent task too")
	}
}
