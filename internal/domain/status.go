package domain

// EpicStatus is the lifecycle state of an epic.
type EpicStatus string

const (
	EpicOpen EpicStatus = "open"
	EpicDone EpicStatus = "done"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskDone       TaskStatus = "done"
)

// ReviewVerdict is a reviewer's pass/fail/major-rethink outcome.
type ReviewVerdict string

const (
	VerdictShip         ReviewVerdict = "SHIP"
	VerdictNeedsWork    ReviewVerdict = "NEEDS_WORK"
	VerdictMajorRethink ReviewVerdict = "MAJOR_RETHINK"
)

// ReviewGateStatus is the plan/completion review gate state carried on an
// epic.
type ReviewGateStatus string

const (
	GateUnknown   ReviewGateStatus = "unknown"
	GateNeedsWork ReviewGateStatus = "needs_work"
	GateShip      ReviewGateStatus = "ship"
)

// ReceiptType distinguishes the three review flavors.
type ReceiptType string

const (
	ReceiptPlanReview       ReceiptType = "plan_review"
	ReceiptImplReview       ReceiptType = "impl_review"
	ReceiptCompletionReview ReceiptType = "completion_review"
)
