package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskDef is the git-tracked definition portion of a task record.
type TaskDef struct {
	ID          TaskID    `json:"id"`
	Epic        EpicID    `json:"epic"`
	Title       string    `json:"title"`
	Priority    *int      `json:"priority"`
	DependsOn   []TaskID  `json:"depends_on"`
	SpecPath    string    `json:"spec_path"`
	Impl        *string   `json:"impl"`
	Review      *string   `json:"review"`
	Sync        *string   `json:"sync"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Legacy runtime fields, only ever populated in definition files written
	// by a schema that predates the runtime-store split. Readers use these
	// as a fallback when no runtime file exists.
	LegacyStatus      TaskStatus `json:"status,omitempty"`
	LegacyAssignee    *string    `json:"assignee,omitempty"`
	LegacyClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	LegacyClaimNote   string     `json:"claim_note,omitempty"`
	LegacyEvidence    *Evidence  `json:"evidence,omitempty"`
	LegacyBlockedReas *string    `json:"blocked_reason,omitempty"`
}

// HasLegacyRuntimeFields reports whether any runtime-only field is present
// in the definition record (backward-compat overlay trigger).
func (t *TaskDef) HasLegacyRuntimeFields() bool {
	return t.LegacyStatus != "" || t.LegacyAssignee != nil || t.LegacyClaimedAt != nil ||
		t.LegacyClaimNote != "" || t.LegacyEvidence != nil || t.LegacyBlockedReas != nil
}

// StripLegacyRuntimeFields clears the legacy runtime fields so the
// definition is hygienic (used by the migration command and by reset's
// backward-compat cleanup).
func (t *TaskDef) StripLegacyRuntimeFields() {
	t.LegacyStatus = ""
	t.LegacyAssignee = nil
	t.LegacyClaimedAt = nil
	t.LegacyClaimNote = ""
	t.LegacyEvidence = nil
	t.LegacyBlockedReas = nil
}

// DependsOnID reports whether dep is listed as a dependency.
func (t *TaskDef) DependsOnID(dep TaskID) bool {
	for _, d := range t.DependsOn {
		if d == dep {
			return true
		}
	}
	return false
}

// Evidence is the {commits, tests, prs} object attached to a completed
// task. Each field is a list even though callers may supply a bare
// string (promoted to a one-element list).
type Evidence struct {
	Commits []string `json:"commits,omitempty"`
	Tests   []string `json:"tests,omitempty"`
	PRs     []string `json:"prs,omitempty"`
}

// IsEmpty reports whether the evidence carries no data at all.
func (e Evidence) IsEmpty() bool {
	return len(e.Commits) == 0 && len(e.Tests) == 0 && len(e.PRs) == 0
}

// UnmarshalJSON accepts commits/tests/prs as absent, a bare scalar
// (promoted to a one-element list), or a list of scalars. Non-string
// values are coerced to strings with fmt.Sprint.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	var raw struct {
		Commits json.RawMessage `json:"commits"`
		Tests   json.RawMessage `json:"tests"`
		PRs     json.RawMessage `json:"prs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if e.Commits, err = decodeStringList(raw.Commits); err != nil {
		return err
	}
	if e.Tests, err = decodeStringList(raw.Tests); err != nil {
		return err
	}
	if e.PRs, err = decodeStringList(raw.PRs); err != nil {
		return err
	}
	return nil
}

// decodeStringList decodes raw as absent, a bare scalar promoted to a
// one-element list, or a list of scalars.
func decodeStringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		if arr == nil {
			return nil, nil
		}
		out := make([]string, 0, len(arr))
		for _, v := range arr {
			out = append(out, coerceToString(v))
		}
		return out, nil
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, err
	}
	if scalar == nil {
		return nil, nil
	}
	return []string{coerceToString(scalar)}, nil
}

func coerceToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// MergedTask overlays Runtime on top of TaskDef into the single view a
// reader or scheduler operates on.
type MergedTask struct {
	TaskDef
	Status      TaskStatus
	Assignee    *string
	ClaimedAt   *time.Time
	ClaimNote   string
	Evidence    Evidence
	BlockedReas *string
	RuntimeUpdatedAt time.Time
}

// Merge overlays rt onto def, runtime winning, producing the single view
// readers present.
func Merge(def TaskDef, rt Runtime) MergedTask {
	return MergedTask{
		TaskDef:          def,
		Status:           rt.Status,
		Assignee:         rt.Assignee,
		ClaimedAt:        rt.ClaimedAt,
		ClaimNote:        rt.ClaimNote,
		Evidence:         rt.Evidence,
		BlockedReas:      rt.BlockedReason,
		RuntimeUpdatedAt: rt.UpdatedAt,
	}
}

// IsReady reports whether t is unclaimed work whose dependencies are all
// done, given a lookup of merged statuses by task id string.
func (t *MergedTask) IsReady(mergedStatus map[string]TaskStatus) bool {
	if t.Status != TaskTodo {
		return false
	}
	for _, dep := range t.DependsOn {
		if mergedStatus[dep.String()] != TaskDone {
			return false
		}
	}
	return true
}
