package scheduler

import "github.com/hochfrequenz/flowctl/internal/domain"

// NextReason explains why Next returned the outcome it did.
type NextReason string

const (
	ReasonResumeInProgress    NextReason = "resume_in_progress"
	ReasonReadyTask           NextReason = "ready_task"
	ReasonNeedsPlanReview     NextReason = "needs_plan_review"
	ReasonNeedsCompletionRev  NextReason = "needs_completion_review"
	ReasonBlockedByEpicDeps   NextReason = "blocked_by_epic_deps"
	ReasonNone                NextReason = "none"
)

// NextStatus is the top-level outcome class of a Next call.
type NextStatus string

const (
	StatusTask             NextStatus = "task"
	StatusPlan             NextStatus = "plan"
	StatusCompletionReview NextStatus = "completion_review"
	StatusNone             NextStatus = "none"
)

// EpicView is the minimal epic shape Next needs.
type EpicView struct {
	ID                     domain.EpicID
	Status                 domain.EpicStatus
	DependsOnEpics         []domain.EpicID
	PlanReviewStatus       domain.ReviewGateStatus
	CompletionReviewStatus domain.ReviewGateStatus
	Tasks                  []TaskView
}

// NextOptions configures Next.
type NextOptions struct {
	RequirePlanReview       bool
	RequireCompletionReview bool
	CurrentActor            string
}

// NextResult is what Next returns.
type NextResult struct {
	Status       NextStatus
	Reason       NextReason
	Epic         domain.EpicID
	Task         *TaskView
	BlockedEpics map[string][]string // epic id -> missing epic dep ids
}

// Next walks epics in order, applying the epic-dependency, plan-review,
// resume-in-progress, ready-task, and completion-review gates in that
// order for each epic before moving to the next.
func Next(epics []EpicView, opts NextOptions) NextResult {
	epicStatus := make(map[string]domain.EpicStatus, len(epics))
	for _, e := range epics {
		epicStatus[e.ID.String()] = e.Status
	}

	blocked := map[string][]string{}

	for _, epic := range epics {
		if epic.Status == domain.EpicDone {
			continue
		}

		var missingEpicDeps []string
		for _, dep := range epic.DependsOnEpics {
			if epicStatus[dep.String()] != domain.EpicDone {
				missingEpicDeps = append(missingEpicDeps, dep.String())
			}
		}
		if len(missingEpicDeps) > 0 {
			blocked[epic.ID.String()] = missingEpicDeps
			continue
		}

		if opts.RequirePlanReview && epic.PlanReviewStatus != domain.GateShip {
			return NextResult{Status: StatusPlan, Reason: ReasonNeedsPlanReview, Epic: epic.ID}
		}

		if opts.CurrentActor != "" {
			for _, t := range epic.Tasks {
				if t.Status == domain.TaskInProgress && t.Assignee != nil && *t.Assignee == opts.CurrentActor {
					task := t
					return NextResult{Status: StatusTask, Reason: ReasonResumeInProgress, Epic: epic.ID, Task: &task}
				}
			}
		}

		ready := Ready(epic.Tasks)
		if len(ready.Ready) > 0 {
			task := ready.Ready[0]
			return NextResult{Status: StatusTask, Reason: ReasonReadyTask, Epic: epic.ID, Task: &task}
		}

		if opts.RequireCompletionReview && allDone(epic.Tasks) && epic.CompletionReviewStatus != domain.GateShip {
			return NextResult{Status: StatusCompletionReview, Reason: ReasonNeedsCompletionRev, Epic: epic.ID}
		}
	}

	if len(epics) > 0 && len(blocked) == len(nonDoneEpics(epics)) && len(blocked) > 0 {
		return NextResult{Status: StatusNone, Reason: ReasonBlockedByEpicDeps, BlockedEpics: blocked}
	}
	return NextResult{Status: StatusNone, Reason: ReasonNone, BlockedEpics: blocked}
}

func allDone(tasks []TaskView) bool {
	if len(tasks) == 0 {
		return true
	}
	for _, t := range tasks {
		if t.Status != domain.TaskDone {
			return false
		}
	}
	return true
}

func nonDoneEpics(epics []EpicView) []EpicView {
	var out []EpicView
	for _, e := range epics {
		if e.Status != domain.EpicDone {
			out = append(out, e)
		}
	}
	return out
}
