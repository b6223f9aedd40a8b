package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/specpatch"
)

// CreateEpicOptions configures CreateEpic.
type CreateEpicOptions struct {
	Title      string
	BranchName string
}

// CreateEpic allocates a new epic id via scan-based numbering, writes its
// definition and a scaffolded spec, and refuses to proceed if the chosen
// id already has a file on disk (collision guard).
func (e *Engine) CreateEpic(opts CreateEpicOptions) (domain.Epic, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Epic{}, flowerr.New(flowerr.KindPrecondition, "epic title must be non-empty")
	}
	num, err := e.Store.Def.NextEpicNum()
	if err != nil {
		return domain.Epic{}, err
	}
	slug := domain.DeriveSlug(opts.Title)
	id := domain.EpicID{Num: num, Slug: slug}
	if e.Store.Def.EpicOrTaskExists(id.String()) {
		return domain.Epic{}, flowerr.Newf(flowerr.KindPrecondition, "epic %s already exists", id)
	}

	now := time.Now()
	epic := domain.Epic{
		ID:               id,
		Title:            opts.Title,
		Status:           domain.EpicOpen,
		PlanReviewStatus: domain.GateUnknown,
		SpecPath:         "specs/" + id.String() + ".md",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.BranchName != "" {
		epic.BranchName = &opts.BranchName
	}

	if err := e.Store.Def.SaveEpicSpec(id.String(), epicSpecTemplate(id.String(), opts.Title)); err != nil {
		return domain.Epic{}, err
	}
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// CreateTaskOptions configures CreateTask.
type CreateTaskOptions struct {
	EpicID     string
	Title      string
	Priority   *int
	Deps       []string
	Acceptance string
}

// CreateTask allocates a new task id scoped to an epic via scan-based
// numbering and writes its definition and a scaffolded spec.
func (e *Engine) CreateTask(opts CreateTaskOptions) (domain.TaskDef, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.TaskDef{}, flowerr.New(flowerr.KindPrecondition, "task title must be non-empty")
	}
	epicID, err := domain.ParseEpicID(opts.EpicID)
	if err != nil {
		return domain.TaskDef{}, flowerr.Wrap(flowerr.KindMalformed, "invalid epic id", err)
	}
	if !e.Store.Def.EpicOrTaskExists(epicID.String()) {
		return domain.TaskDef{}, flowerr.Newf(flowerr.KindNotFound, "epic %s not found", opts.EpicID)
	}

	num, err := e.Store.Def.NextTaskNum(epicID.String())
	if err != nil {
		return domain.TaskDef{}, err
	}
	id := domain.TaskID{Epic: epicID, Num: num}
	if e.Store.Def.EpicOrTaskExists(id.String()) {
		return domain.TaskDef{}, flowerr.Newf(flowerr.KindPrecondition, "task %s already exists", id)
	}

	var deps []domain.TaskID
	for _, raw := range opts.Deps {
		dep, err := domain.ParseTaskID(raw)
		if err != nil {
			return domain.TaskDef{}, flowerr.Wrap(flowerr.KindMalformed, "invalid dependency id", err)
		}
		depEpic, _ := domain.EpicOf(dep.String())
		if depEpic != epicID.String() {
			return domain.TaskDef{}, flowerr.Newf(flowerr.KindPrecondition, "dependency %s is outside epic %s", raw, epicID)
		}
		if !e.Store.Def.EpicOrTaskExists(dep.String()) {
			return domain.TaskDef{}, flowerr.Newf(flowerr.KindNotFound, "task %s not found", raw)
		}
		deps = append(deps, dep)
	}

	now := time.Now()
	def := domain.TaskDef{
		ID:        id,
		Epic:      epicID,
		Title:     opts.Title,
		Priority:  opts.Priority,
		DependsOn: deps,
		SpecPath:  "tasks/" + id.String() + ".md",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.Store.Def.SaveTaskSpec(id.String(), taskSpecTemplate(id.String(), opts.Title, opts.Acceptance)); err != nil {
		return domain.TaskDef{}, err
	}
	if err := e.Store.Def.SaveTask(def); err != nil {
		return domain.TaskDef{}, err
	}
	if err := e.Store.Runtime.ResetRuntime(id.String(), now); err != nil {
		return domain.TaskDef{}, err
	}
	return def, nil
}

func epicSpecTemplate(id, title string) string {
	return fmt.Sprintf(`# %s %s

## Overview
TBD

## Scope
TBD

## Approach
TBD

## Quick commands
<!-- Required: at least one smoke command for the repo -->
- `+"`"+`# e.g., npm test, bun test, make test`+"`"+`

## Acceptance
- [ ] TBD

## References
- TBD
`, id, title)
}

func taskSpecTemplate(id, title, acceptance string) string {
	if strings.TrimSpace(acceptance) == "" {
		acceptance = "- [ ] TBD"
	}
	return fmt.Sprintf(`# %s %s

## Description
TBD

## Acceptance
%s

## Done summary
TBD

## Evidence
- Commits:
- Tests:
- PRs:
`, id, title, acceptance)
}

// SetEpicTitle updates only the title, without touching the id (use
// RenameEpic when the slug must change too).
func (e *Engine) SetEpicTitle(epicID, title string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	epic.Title = title
	epic.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// SetEpicBranch sets the epic's branch_name.
func (e *Engine) SetEpicBranch(epicID, branch string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	epic.BranchName = &branch
	epic.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// SetEpicPlan replaces the whole epic spec with the supplied plan
// markdown content (the plan file's full contents become the epic spec
// body).
func (e *Engine) SetEpicPlan(epicID, content string) error {
	if _, err := e.Store.Def.LoadEpic(epicID); err != nil {
		return err
	}
	return e.Store.Def.SaveEpicSpec(epicID, content)
}

// SetEpicPlanReviewStatus sets the plan review gate, stamping
// plan_reviewed_at with the current time whatever the status.
func (e *Engine) SetEpicPlanReviewStatus(epicID string, status domain.ReviewGateStatus) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	epic.PlanReviewStatus = status
	now := time.Now()
	epic.PlanReviewedAt = &now
	epic.UpdatedAt = now
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// SetEpicCompletionReviewStatus sets the completion review gate.
func (e *Engine) SetEpicCompletionReviewStatus(epicID string, status domain.ReviewGateStatus) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	epic.CompletionReviewStatus = status
	now := time.Now()
	epic.CompletionReviewedAt = &now
	epic.UpdatedAt = now
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// BackendField selects which of an epic/task's backend fields a
// set-backend/show-backend command targets.
type BackendField string

const (
	BackendImpl   BackendField = "impl"
	BackendReview BackendField = "review"
	BackendSync   BackendField = "sync"
)

// SetEpicBackend sets one of an epic's default_impl/default_review/default_sync fields.
func (e *Engine) SetEpicBackend(epicID string, field BackendField, value string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	switch field {
	case BackendImpl:
		epic.DefaultImpl = &value
	case BackendReview:
		epic.DefaultReview = &value
	case BackendSync:
		epic.DefaultSync = &value
	default:
		return domain.Epic{}, flowerr.Newf(flowerr.KindMalformed, "unknown backend field %q", field)
	}
	epic.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// SetTaskBackend sets one of a task's impl/review/sync fields.
func (e *Engine) SetTaskBackend(taskID string, field BackendField, value string) (domain.TaskDef, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.TaskDef{}, err
	}
	switch field {
	case BackendImpl:
		def.Impl = &value
	case BackendReview:
		def.Review = &value
	case BackendSync:
		def.Sync = &value
	default:
		return domain.TaskDef{}, flowerr.Newf(flowerr.KindMalformed, "unknown backend field %q", field)
	}
	def.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveTask(def); err != nil {
		return domain.TaskDef{}, err
	}
	return def, nil
}

// ShowTaskBackend returns the value of one of a task's backend fields.
func ShowTaskBackend(def domain.TaskDef, field BackendField) string {
	switch field {
	case BackendImpl:
		if def.Impl != nil {
			return *def.Impl
		}
	case BackendReview:
		if def.Review != nil {
			return *def.Review
		}
	case BackendSync:
		if def.Sync != nil {
			return *def.Sync
		}
	}
	return ""
}

// SetTaskDescription replaces the "## Description" section body.
func (e *Engine) SetTaskDescription(taskID, content string) error {
	return e.patchTaskSpecSection(taskID, "## Description", content)
}

// SetTaskAcceptance replaces the "## Acceptance" section body.
func (e *Engine) SetTaskAcceptance(taskID, content string) error {
	return e.patchTaskSpecSection(taskID, "## Acceptance", content)
}

func (e *Engine) patchTaskSpecSection(taskID, heading, content string) error {
	if _, err := e.Store.Def.LoadTask(taskID); err != nil {
		return err
	}
	spec, err := e.Store.Def.LoadTaskSpec(taskID)
	if err != nil {
		return err
	}
	patched, err := specpatch.PatchSection(spec, heading, content)
	if err != nil {
		return flowerr.Wrap(flowerr.KindMalformed, fmt.Sprintf("patching %s", heading), err)
	}
	return e.Store.Def.SaveTaskSpec(taskID, patched)
}

// SetTaskSpec replaces the task's entire spec markdown, validating that
// the required headings remain present exactly once.
func (e *Engine) SetTaskSpec(taskID, content string) error {
	if _, err := e.Store.Def.LoadTask(taskID); err != nil {
		return err
	}
	if errs := specpatch.ValidateTaskSpecHeadings(content); len(errs) > 0 {
		return flowerr.Newf(flowerr.KindMalformed, "invalid task spec: %s", strings.Join(errs, "; "))
	}
	return e.Store.Def.SaveTaskSpec(taskID, content)
}
