package domain

import "time"

// Runtime is the git-ignored portion of a task record: everything that
// changes on every claim, heartbeat, or completion and would otherwise
// generate merge conflicts if it lived in the tracked definition file.
//
// Runtime and TaskDef are modeled as distinct structured records on
// purpose; Merge is the only place they get combined into a single view.
// Mutating one in place to fake the other has been a source of subtle
// bugs in every prior implementation of this store.
type Runtime struct {
	Status        TaskStatus `json:"status"`
	Assignee      *string    `json:"assignee"`
	ClaimedAt     *time.Time `json:"claimed_at"`
	ClaimNote     string     `json:"claim_note"`
	Evidence      Evidence   `json:"evidence"`
	BlockedReason *string    `json:"blocked_reason"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewRuntime returns the zero-value runtime state for a freshly created
// task: todo, unassigned, no evidence.
func NewRuntime(now time.Time) Runtime {
	return Runtime{
		Status:    TaskTodo,
		UpdatedAt: now,
	}
}

// IsClaimed reports whether the task currently has an assignee on record.
func (r Runtime) IsClaimed() bool {
	return r.Assignee != nil && *r.Assignee != ""
}
