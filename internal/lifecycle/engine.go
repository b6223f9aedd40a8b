package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/specpatch"
	"github.com/hochfrequenz/flowctl/internal/store"
)

// Engine drives the task and epic state machines over a Store.
type Engine struct {
	Store *store.Store
	Actor string
}

// New builds an Engine bound to s, acting as actor.
func New(s *store.Store, actor string) *Engine {
	return &Engine{Store: s, Actor: actor}
}

// StartOptions configures Start.
type StartOptions struct {
	Force bool
	Note  string
}

// Start transitions a task from todo (or from blocked/in_progress with
// force) to in_progress, claiming it for the current actor if unclaimed.
func (e *Engine) Start(taskID string, opts StartOptions) (domain.MergedTask, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.MergedTask{}, err
	}

	if !opts.Force {
		for _, dep := range def.DependsOn {
			status, err := e.Store.MergedStatusOf(dep.String())
			if err != nil {
				return domain.MergedTask{}, err
			}
			if status != domain.TaskDone {
				return domain.MergedTask{}, flowerr.Newf(flowerr.KindPrecondition,
					"task %s has unmet dependency %s (status=%s)", taskID, dep, status)
			}
		}
	}

	var result domain.MergedTask
	err = e.Store.Runtime.WithLock(taskID, func() error {
		rt, hasRuntime, err := e.Store.Runtime.LoadRuntime(taskID)
		if err != nil {
			return err
		}
		current := store.MergedStatusFromDef(def, rt, hasRuntime)

		if current.Status == domain.TaskDone {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is already done", taskID)
		}
		if current.Status == domain.TaskBlocked && !opts.Force {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is blocked; use --force to override", taskID)
		}
		claimedByOther := current.IsClaimed() && *current.Assignee != e.Actor
		sameActorResuming := current.Status == domain.TaskInProgress && current.IsClaimed() && *current.Assignee == e.Actor
		if claimedByOther && !opts.Force {
			return flowerr.Newf(flowerr.KindConcurrency, "task %s is claimed by %s; use --force to take over", taskID, *current.Assignee)
		}
		if current.Status != domain.TaskTodo && !sameActorResuming && !opts.Force {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is %s, not todo", taskID, current.Status)
		}

		now := time.Now()
		next := current
		next.Status = domain.TaskInProgress
		next.UpdatedAt = now

		forceTakeover := opts.Force && claimedByOther
		if !current.IsClaimed() {
			actor := e.Actor
			next.Assignee = &actor
			next.ClaimedAt = &now
		}
		if opts.Note != "" {
			next.ClaimNote = opts.Note
		}
		if forceTakeover {
			prev := ""
			if current.Assignee != nil {
				prev = *current.Assignee
			}
			actor := e.Actor
			next.Assignee = &actor
			next.ClaimedAt = &now
			if opts.Note == "" {
				next.ClaimNote = fmt.Sprintf("Taken over from %s", prev)
			}
		}

		if err := e.Store.Runtime.SaveRuntime(taskID, next); err != nil {
			return err
		}
		result = domain.Merge(def, next)
		return nil
	})
	if err != nil {
		return domain.MergedTask{}, err
	}
	return result, nil
}

// DoneOptions configures Done.
type DoneOptions struct {
	Summary  string
	Evidence domain.Evidence
	Force    bool
}

// Done transitions a task from in_progress to done, patching its spec's
// "## Done summary" and "## Evidence" sections and recording evidence on
// the runtime record. The spec patch and runtime write are each atomic;
// if the spec patch fails, the runtime is left untouched.
func (e *Engine) Done(taskID string, opts DoneOptions) (domain.MergedTask, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.MergedTask{}, err
	}

	var result domain.MergedTask
	err = e.Store.Runtime.WithLock(taskID, func() error {
		rt, hasRuntime, err := e.Store.Runtime.LoadRuntime(taskID)
		if err != nil {
			return err
		}
		current := store.MergedStatusFromDef(def, rt, hasRuntime)

		if current.Status == domain.TaskDone {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is already done", taskID)
		}
		if current.Status != domain.TaskInProgress {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is %s, not in_progress", taskID, current.Status)
		}
		if !opts.Force && current.IsClaimed() && *current.Assignee != e.Actor {
			return flowerr.Newf(flowerr.KindConcurrency, "task %s is claimed by %s; use --force", taskID, *current.Assignee)
		}

		spec, err := e.Store.Def.LoadTaskSpec(taskID)
		if err != nil {
			return err
		}
		evidenceBody := specpatch.RenderEvidence(opts.Evidence.Commits, opts.Evidence.Tests, opts.Evidence.PRs)
		patched, err := specpatch.PatchSection(spec, "## Done summary", opts.Summary)
		if err != nil {
			return flowerr.Wrap(flowerr.KindMalformed, "patching done summary", err)
		}
		patched, err = specpatch.PatchSection(patched, "## Evidence", evidenceBody)
		if err != nil {
			return flowerr.Wrap(flowerr.KindMalformed, "patching evidence", err)
		}
		if err := e.Store.Def.SaveTaskSpec(taskID, patched); err != nil {
			return err
		}

		now := time.Now()
		next := current
		next.Status = domain.TaskDone
		next.Evidence = opts.Evidence
		next.UpdatedAt = now
		if err := e.Store.Runtime.SaveRuntime(taskID, next); err != nil {
			return err
		}
		result = domain.Merge(def, next)
		return nil
	})
	if err != nil {
		return domain.MergedTask{}, err
	}
	return result, nil
}

// Block transitions a task to blocked, recording reason and appending it
// under the spec's "## Done summary" section.
func (e *Engine) Block(taskID, reason string) (domain.MergedTask, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.MergedTask{}, flowerr.New(flowerr.KindPrecondition, "block reason must be non-empty")
	}

	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.MergedTask{}, err
	}

	var result domain.MergedTask
	err = e.Store.Runtime.WithLock(taskID, func() error {
		rt, hasRuntime, err := e.Store.Runtime.LoadRuntime(taskID)
		if err != nil {
			return err
		}
		current := store.MergedStatusFromDef(def, rt, hasRuntime)
		if current.Status == domain.TaskDone {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is already done", taskID)
		}

		spec, err := e.Store.Def.LoadTaskSpec(taskID)
		if err != nil {
			return err
		}
		existing, err := specpatch.GetSection(spec, "## Done summary")
		if err != nil {
			return flowerr.Wrap(flowerr.KindMalformed, "reading done summary", err)
		}
		var newBody string
		if existing == "" || existing == "TBD" {
			newBody = fmt.Sprintf("Blocked:\n%s", reason)
		} else {
			newBody = fmt.Sprintf("%s\n\nBlocked:\n%s", existing, reason)
		}
		patched, err := specpatch.PatchSection(spec, "## Done summary", newBody)
		if err != nil {
			return flowerr.Wrap(flowerr.KindMalformed, "patching done summary", err)
		}
		if err := e.Store.Def.SaveTaskSpec(taskID, patched); err != nil {
			return err
		}

		now := time.Now()
		next := current
		next.Status = domain.TaskBlocked
		next.BlockedReas = &reason
		next.UpdatedAt = now
		if err := e.Store.Runtime.SaveRuntime(taskID, next); err != nil {
			return err
		}
		result = domain.Merge(def, next)
		return nil
	})
	if err != nil {
		return domain.MergedTask{}, err
	}
	return result, nil
}

// Reset returns a task to todo: clears runtime to baseline, strips legacy
// runtime fields from the definition, and clears the spec's "## Evidence"
// body. If cascade is set, every same-epic task depending (directly or
// transitively) on taskID that is not todo or in_progress is reset the
// same way.
func (e *Engine) Reset(taskID string, cascade bool) ([]domain.MergedTask, error) {
	epicID, ok := domain.EpicOf(taskID)
	if !ok {
		return nil, flowerr.Newf(flowerr.KindMalformed, "invalid task id %s", taskID)
	}
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return nil, err
	}
	if epic.Status == domain.EpicDone {
		return nil, flowerr.Newf(flowerr.KindPrecondition, "epic %s is closed", epicID)
	}

	targets := []string{taskID}
	if cascade {
		dependents, err := e.dependentsTransitive(epicID, taskID)
		if err != nil {
			return nil, err
		}
		for _, id := range dependents {
			status, err := e.Store.MergedStatusOf(id)
			if err != nil {
				return nil, err
			}
			if status == domain.TaskTodo || status == domain.TaskInProgress {
				continue
			}
			targets = append(targets, id)
		}
	}

	var results []domain.MergedTask
	for _, id := range targets {
		mt, err := e.resetOne(id)
		if err != nil {
			return nil, err
		}
		if mt != nil {
			results = append(results, *mt)
		}
	}
	return results, nil
}

func (e *Engine) resetOne(taskID string) (*domain.MergedTask, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return nil, err
	}

	var result domain.MergedTask
	err = e.Store.Runtime.WithLock(taskID, func() error {
		rt, hasRuntime, err := e.Store.Runtime.LoadRuntime(taskID)
		if err != nil {
			return err
		}
		current := store.MergedStatusFromDef(def, rt, hasRuntime)

		if current.Status == domain.TaskInProgress {
			return flowerr.Newf(flowerr.KindPrecondition, "task %s is in_progress; cannot reset", taskID)
		}
		if current.Status == domain.TaskTodo {
			result = domain.Merge(def, current)
			return nil
		}

		if def.HasLegacyRuntimeFields() {
			def.StripLegacyRuntimeFields()
			def.LegacyStatus = domain.TaskTodo
			if err := e.Store.Def.SaveTask(def); err != nil {
				return err
			}
		}

		spec, err := e.Store.Def.LoadTaskSpec(taskID)
		if err == nil {
			if cleared, cerr := specpatch.ClearEvidence(spec); cerr == nil {
				spec = cleared
			}
			if cleared, cerr := specpatch.ClearDoneSummary(spec); cerr == nil {
				spec = cleared
			}
			_ = e.Store.Def.SaveTaskSpec(taskID, spec)
		}

		now := time.Now()
		baseline := domain.NewRuntime(now)
		if err := e.Store.Runtime.SaveRuntime(taskID, baseline); err != nil {
			return err
		}
		result = domain.Merge(def, baseline)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// dependentsTransitive returns every task in epicID depending, directly
// or indirectly, on taskID (excluding taskID itself).
func (e *Engine) dependentsTransitive(epicID, taskID string) ([]string, error) {
	ids, err := e.Store.Def.ListTaskIDs(epicID)
	if err != nil {
		return nil, err
	}
	defs := make(map[string]domain.TaskDef, len(ids))
	for _, id := range ids {
		def, err := e.Store.Def.LoadTask(id)
		if err != nil {
			return nil, err
		}
		defs[id] = def
	}

	visited := map[string]bool{taskID: true}
	var order []string
	var visit func(id string)
	visit = func(id string) {
		for _, other := range ids {
			if visited[other] {
				continue
			}
			if defs[other].DependsOnID(mustParseTaskID(id)) {
				visited[other] = true
				order = append(order, other)
				visit(other)
			}
		}
	}
	visit(taskID)
	return order, nil
}

func mustParseTaskID(s string) domain.TaskID {
	id, err := domain.ParseTaskID(s)
	if err != nil {
		return domain.TaskID{}
	}
	return id
}
