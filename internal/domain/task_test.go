package domain

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestMerge(t *testing.T) {
	def := TaskDef{ID: TaskID{Epic: EpicID{Num: 1}, Num: 1}, Title: "Add login"}
	now := time.Now()
	actor := "alice"
	rt := Runtime{Status: TaskInProgress, Assignee: &actor, UpdatedAt: now}

	mt := Merge(def, rt)
	if mt.Title != "Add login" {
		t.Errorf("Title = %q, want Add login", mt.Title)
	}
	if mt.Status != TaskInProgress {
		t.Errorf("Status = %q, want in_progress", mt.Status)
	}
	if mt.Assignee == nil || *mt.Assignee != "alice" {
		t.Errorf("Assignee = %v, want alice", mt.Assignee)
	}
}

func TestMergedTask_IsReady(t *testing.T) {
	dep := TaskID{Epic: EpicID{Num: 1}, Num: 1}
	def := TaskDef{ID: TaskID{Epic: EpicID{Num: 1}, Num: 2}, DependsOn: []TaskID{dep}}
	mt := Merge(def, Runtime{Status: TaskTodo})

	statuses := map[string]TaskStatus{dep.String(): TaskInProgress}
	if mt.IsReady(statuses) {
		t.Error("task should not be ready while its dependency is in_progress")
	}

	statuses[dep.String()] = TaskDone
	if !mt.IsReady(statuses) {
		t.Error("task should be ready once its dependency is done")
	}
}

func TestMergedTask_IsReady_NotTodo(t *testing.T) {
	def := TaskDef{ID: TaskID{Epic: EpicID{Num: 1}, Num: 1}}
	mt := Merge(def, Runtime{Status: TaskDone})
	if mt.IsReady(map[string]TaskStatus{}) {
		t.Error("a done task should never report ready")
	}
}

func TestTaskDef_HasLegacyRuntimeFields(t *testing.T) {
	var def TaskDef
	if def.HasLegacyRuntimeFields() {
		t.Error("zero-value TaskDef should carry no legacy fields")
	}

	def.LegacyStatus = TaskBlocked
	if !def.HasLegacyRuntimeFields() {
		t.Error("expected HasLegacyRuntimeFields once LegacyStatus is set")
	}

	def.StripLegacyRuntimeFields()
	if def.HasLegacyRuntimeFields() {
		t.Error("expected StripLegacyRuntimeFields to clear every legacy field")
	}
}

func TestTaskDef_DependsOnID(t *testing.T) {
	dep := TaskID{Epic: EpicID{Num: 1}, Num: 1}
	other := TaskID{Epic: EpicID{Num: 1}, Num: 2}
	def := TaskDef{DependsOn: []TaskID{dep}}

	if !def.DependsOnID(dep) {
		t.Error("expected DependsOnID to find a listed dependency")
	}
	if def.DependsOnID(other) {
		t.Error("expected DependsOnID to reject an unlisted task")
	}
}

func TestEvidence_UnmarshalJSON_BareStringPromotedToList(t *testing.T) {
	var e Evidence
	if err := json.Unmarshal([]byte(`{"commits":"abc"}`), &e); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.Commits, []string{"abc"}) {
		t.Errorf("Commits = %v, want [abc]", e.Commits)
	}
}

func TestEvidence_UnmarshalJSON_List(t *testing.T) {
	var e Evidence
	if err := json.Unmarshal([]byte(`{"tests":["TestFoo","TestBar"]}`), &e); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.Tests, []string{"TestFoo", "TestBar"}) {
		t.Errorf("Tests = %v, want [TestFoo TestBar]", e.Tests)
	}
}

func TestEvidence_UnmarshalJSON_CoercesNonStringScalars(t *testing.T) {
	var e Evidence
	if err := json.Unmarshal([]byte(`{"prs":[42, true]}`), &e); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.PRs, []string{"42", "true"}) {
		t.Errorf("PRs = %v, want [42 true]", e.PRs)
	}
}

func TestEvidence_UnmarshalJSON_AbsentFieldsStayNil(t *testing.T) {
	var e Evidence
	if err := json.Unmarshal([]byte(`{}`), &e); err != nil {
		t.Fatal(err)
	}
	if !e.IsEmpty() {
		t.Errorf("Evidence = %+v, want empty", e)
	}
}

func TestEvidence_IsEmpty(t *testing.T) {
	if !(Evidence{}).IsEmpty() {
		t.Error("zero-value Evidence should be empty")
	}
	if (Evidence{Commits: []string{"abc123"}}).IsEmpty() {
		t.Error("Evidence with a commit should not be empty")
	}
}
