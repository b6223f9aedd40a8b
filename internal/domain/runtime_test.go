package domain

import (
	"testing"
	"time"
)

func TestNewRuntime(t *testing.T) {
	now := time.Now()
	rt := NewRuntime(now)
	if rt.Status != TaskTodo {
		t.Errorf("Status = %q, want todo", rt.Status)
	}
	if !rt.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", rt.UpdatedAt, now)
	}
	if rt.Assignee != nil {
		t.Error("a fresh runtime should have no assignee")
	}
}

func TestRuntime_IsClaimed(t *testing.T) {
	if (Runtime{}).IsClaimed() {
		t.Error("a runtime with no assignee should not be claimed")
	}
	empty := ""
	if (Runtime{Assignee: &empty}).IsClaimed() {
		t.Error("a runtime with an empty-string assignee should not be claimed")
	}
	actor := "alice"
	if !(Runtime{Assignee: &actor}).IsClaimed() {
		t.Error("a runtime with a non-empty assignee should be claimed")
	}
}
