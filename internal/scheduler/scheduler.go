// Package scheduler computes an epic's ready/in-progress/blocked
// partition and walks an ordered epic list to pick the next work unit,
// gating on plan review, completion review, and epic dependencies.
package scheduler

import (
	"sort"

	"github.com/hochfrequenz/flowctl/internal/domain"
)

// TaskView is the minimal merged-task shape the scheduler needs; callers
// build one per task from their store's merged view.
type TaskView struct {
	ID        domain.TaskID
	Title     string
	Priority  *int
	DependsOn []domain.TaskID
	Status    domain.TaskStatus
	Assignee  *string
}

// BlockedTask is a task blocked on one or more unmet dependencies.
type BlockedTask struct {
	Task        TaskView
	MissingDeps []domain.TaskID
}

// ReadyResult partitions one epic's tasks.
type ReadyResult struct {
	Ready      []TaskView
	InProgress []TaskView
	Blocked    []BlockedTask
}

// Ready partitions tasks (already merged with runtime) into ready,
// in_progress, and blocked groups, ordering ready by (priority, task_num,
// title) ascending with a null priority sorting after every real value.
func Ready(tasks []TaskView) ReadyResult {
	status := make(map[string]domain.TaskStatus, len(tasks))
	for _, t := range tasks {
		status[t.ID.String()] = t.Status
	}

	var result ReadyResult
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskInProgress:
			result.InProgress = append(result.InProgress, t)
		case domain.TaskBlocked:
			result.Blocked = append(result.Blocked, BlockedTask{Task: t, MissingDeps: unmetDeps(t, status)})
		case domain.TaskDone:
			// done tasks appear in neither bucket
		default: // todo
			missing := unmetDeps(t, status)
			if len(missing) == 0 {
				result.Ready = append(result.Ready, t)
			} else {
				result.Blocked = append(result.Blocked, BlockedTask{Task: t, MissingDeps: missing})
			}
		}
	}

	sort.Slice(result.Ready, func(i, j int) bool {
		return lessTaskOrder(result.Ready[i], result.Ready[j])
	})
	sort.Slice(result.InProgress, func(i, j int) bool {
		return lessTaskOrder(result.InProgress[i], result.InProgress[j])
	})
	sort.Slice(result.Blocked, func(i, j int) bool {
		return lessTaskOrder(result.Blocked[i].Task, result.Blocked[j].Task)
	})
	return result
}

func unmetDeps(t TaskView, status map[string]domain.TaskStatus) []domain.TaskID {
	var missing []domain.TaskID
	for _, dep := range t.DependsOn {
		if status[dep.String()] != domain.TaskDone {
			missing = append(missing, dep)
		}
	}
	return missing
}

const priorityNullSentinel = int(^uint(0) >> 1) // max int: sorts after any real priority

func lessTaskOrder(a, b TaskView) bool {
	pa, pb := priorityValue(a.Priority), priorityValue(b.Priority)
	if pa != pb {
		return pa < pb
	}
	if a.ID.Num != b.ID.Num {
		return a.ID.Num < b.ID.Num
	}
	return a.Title < b.Title
}

func priorityValue(p *int) int {
	if p == nil {
		return priorityNullSentinel
	}
	return *p
}
