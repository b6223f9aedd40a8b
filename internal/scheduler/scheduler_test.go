package scheduler

import (
	"testing"

	"github.com/hochfrequenz/flowctl/internal/domain"
)

func tid(epicNum, num int) domain.TaskID {
	return domain.TaskID{Epic: domain.EpicID{Num: epicNum}, Num: num}
}

func TestReady_PartitionsByStatus(t *testing.T) {
	tasks := []TaskView{
		{ID: tid(1, 1), Status: domain.TaskDone},
		{ID: tid(1, 2), Status: domain.TaskTodo, DependsOn: []domain.TaskID{tid(1, 1)}},
		{ID: tid(1, 3), Status: domain.TaskTodo, DependsOn: []domain.TaskID{tid(1, 2)}},
		{ID: tid(1, 4), Status: domain.TaskInProgress},
		{ID: tid(1, 5), Status: domain.TaskBlocked},
	}

	result := Ready(tasks)

	if len(result.Ready) != 1 || result.Ready[0].ID != tid(1, 2) {
		t.Errorf("Ready = %v, want only task 1.2", result.Ready)
	}
	if len(result.InProgress) != 1 || result.InProgress[0].ID != tid(1, 4) {
		t.Errorf("InProgress = %v, want only task 1.4", result.InProgress)
	}
	if len(result.Blocked) != 2 {
		t.Fatalf("Blocked = %v, want 2 entries (1.3 unmet dep, 1.5 explicit block)", result.Blocked)
	}
}

func TestReady_OrdersByPriorityThenNumThenTitle(t *testing.T) {
	p1, p2 := 1, 2
	tasks := []TaskView{
		{ID: tid(1, 3), Title: "C", Status: domain.TaskTodo, Priority: &p2},
		{ID: tid(1, 1), Title: "A", Status: domain.TaskTodo, Priority: &p1},
		{ID: tid(1, 2), Title: "B", Status: domain.TaskTodo, Priority: &p1},
		{ID: tid(1, 4), Title: "D", Status: domain.TaskTodo},
	}

	result := Ready(tasks)
	var order []int
	for _, tv := range result.Ready {
		order = append(order, tv.ID.Num)
	}
	if len(order) != 4 || order[0] != 1 || order[1] != 2 || order[2] != 3 || order[3] != 4 {
		t.Errorf("order = %v, want [1 2 3 4] (priority then num, nil-priority last)", order)
	}
}

func TestReady_DoneTasksExcluded(t *testing.T) {
	tasks := []TaskView{{ID: tid(1, 1), Status: domain.TaskDone}}
	result := Ready(tasks)
	if len(result.Ready)+len(result.InProgress)+len(result.Blocked) != 0 {
		t.Error("a done task should not appear in any bucket")
	}
}
