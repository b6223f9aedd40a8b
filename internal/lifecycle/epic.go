package lifecycle

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
)

// CloseEpic marks epicID done, requiring every child task to already be
// done (by merged status).
func (e *Engine) CloseEpic(epicID string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}

	taskIDs, err := e.Store.Def.ListTaskIDs(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	var incomplete []string
	for _, id := range taskIDs {
		status, err := e.Store.MergedStatusOf(id)
		if err != nil {
			return domain.Epic{}, err
		}
		if status != domain.TaskDone {
			incomplete = append(incomplete, id)
		}
	}
	if len(incomplete) > 0 {
		return domain.Epic{}, flowerr.Newf(flowerr.KindPrecondition,
			"epic %s has incomplete tasks: %s", epicID, strings.Join(incomplete, ", "))
	}

	epic.Status = domain.EpicDone
	epic.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// AddEpicDep adds a dependency edge between two epics, rejecting self-edges
// and duplicates (no-op if already present).
func (e *Engine) AddEpicDep(epicID, depID string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	dep, err := domain.ParseEpicID(depID)
	if err != nil {
		return domain.Epic{}, flowerr.Wrap(flowerr.KindMalformed, "invalid dependency id", err)
	}
	if dep.String() == epic.ID.String() {
		return domain.Epic{}, flowerr.Newf(flowerr.KindPrecondition, "epic %s cannot depend on itself", epicID)
	}
	if !e.Store.Def.EpicOrTaskExists(dep.String()) {
		return domain.Epic{}, flowerr.Newf(flowerr.KindNotFound, "epic %s not found", depID)
	}
	if !epic.DependsOnEpic(dep) {
		epic.DependsOnEpics = append(epic.DependsOnEpics, dep)
		epic.UpdatedAt = time.Now()
		if err := e.Store.Def.SaveEpic(epic); err != nil {
			return domain.Epic{}, err
		}
	}
	return epic, nil
}

// RmEpicDep removes a dependency edge, a no-op if not present.
func (e *Engine) RmEpicDep(epicID, depID string) (domain.Epic, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Epic{}, err
	}
	dep, err := domain.ParseEpicID(depID)
	if err != nil {
		return domain.Epic{}, flowerr.Wrap(flowerr.KindMalformed, "invalid dependency id", err)
	}
	filtered := epic.DependsOnEpics[:0]
	for _, d := range epic.DependsOnEpics {
		if d.String() != dep.String() {
			filtered = append(filtered, d)
		}
	}
	epic.DependsOnEpics = filtered
	epic.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return domain.Epic{}, err
	}
	return epic, nil
}

// SetTaskDeps adds deps to taskID's existing dependency list,
// deduplicating, so callers need not pass the union themselves.
func (e *Engine) SetTaskDeps(taskID string, deps []string) (domain.TaskDef, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.TaskDef{}, err
	}
	epicID, _ := domain.EpicOf(taskID)

	seen := map[string]bool{}
	var merged []domain.TaskID
	for _, existing := range def.DependsOn {
		if !seen[existing.String()] {
			seen[existing.String()] = true
			merged = append(merged, existing)
		}
	}
	for _, raw := range deps {
		dep, err := domain.ParseTaskID(raw)
		if err != nil {
			return domain.TaskDef{}, flowerr.Wrap(flowerr.KindMalformed, "invalid dependency id", err)
		}
		if dep.String() == taskID {
			return domain.TaskDef{}, flowerr.Newf(flowerr.KindPrecondition, "task %s cannot depend on itself", taskID)
		}
		depEpic, _ := domain.EpicOf(dep.String())
		if depEpic != epicID {
			return domain.TaskDef{}, flowerr.Newf(flowerr.KindPrecondition, "dependency %s is outside epic %s", raw, epicID)
		}
		if !e.Store.Def.EpicOrTaskExists(dep.String()) {
			return domain.TaskDef{}, flowerr.Newf(flowerr.KindNotFound, "task %s not found", raw)
		}
		if !seen[dep.String()] {
			seen[dep.String()] = true
			merged = append(merged, dep)
		}
	}
	def.DependsOn = merged
	def.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveTask(def); err != nil {
		return domain.TaskDef{}, err
	}
	return def, nil
}

// AddTaskDep adds a single dependency edge, a no-op if already present.
func (e *Engine) AddTaskDep(taskID, depID string) (domain.TaskDef, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.TaskDef{}, err
	}
	current := make([]string, len(def.DependsOn))
	for i, d := range def.DependsOn {
		current[i] = d.String()
	}
	return e.SetTaskDeps(taskID, append(current, depID))
}

// RmTaskDep removes a single dependency edge, a no-op if not present.
func (e *Engine) RmTaskDep(taskID, depID string) (domain.TaskDef, error) {
	def, err := e.Store.Def.LoadTask(taskID)
	if err != nil {
		return domain.TaskDef{}, err
	}
	dep, err := domain.ParseTaskID(depID)
	if err != nil {
		return domain.TaskDef{}, flowerr.Wrap(flowerr.KindMalformed, "invalid dependency id", err)
	}
	filtered := def.DependsOn[:0]
	for _, d := range def.DependsOn {
		if d.String() != dep.String() {
			filtered = append(filtered, d)
		}
	}
	def.DependsOn = filtered
	def.UpdatedAt = time.Now()
	if err := e.Store.Def.SaveTask(def); err != nil {
		return domain.TaskDef{}, err
	}
	return def, nil
}

// RenameResult reports what RenameEpic did, for command-layer reporting.
type RenameResult struct {
	OldID string
	NewID string
	Moved []string
}

// RenameEpic recomputes the epic's id from a new title (keeping the same
// numeric prefix), moves every dependent file to the new id, and rewrites
// every in-file reference: depends_on_epics in other epics, and
// depends_on edges within the renamed tasks. Rename is atomic per file,
// not per set: on any rename error the operation aborts and reports which
// files failed.
func (e *Engine) RenameEpic(epicID, newTitle string) (RenameResult, error) {
	epic, err := e.Store.Def.LoadEpic(epicID)
	if err != nil {
		return RenameResult{}, err
	}
	newSlug := domain.DeriveSlug(newTitle)
	newID := domain.EpicID{Num: epic.ID.Num, Slug: newSlug}
	if newID.String() == epic.ID.String() {
		epic.Title = newTitle
		epic.UpdatedAt = time.Now()
		if err := e.Store.Def.SaveEpic(epic); err != nil {
			return RenameResult{}, err
		}
		return RenameResult{OldID: epicID, NewID: epicID}, nil
	}

	if e.Store.Def.EpicOrTaskExists(newID.String()) {
		return RenameResult{}, flowerr.Newf(flowerr.KindPrecondition,
			"cannot rename %s to %s: id already in use", epicID, newID)
	}

	taskIDs, err := e.Store.Def.ListTaskIDs(epicID)
	if err != nil {
		return RenameResult{}, err
	}

	var moved []string
	fail := func(what string, err error) (RenameResult, error) {
		return RenameResult{OldID: epicID, NewID: newID.String(), Moved: moved},
			flowerr.Wrap(flowerr.KindExternalTool, fmt.Sprintf("renaming %s", what), err)
	}

	epic.ID = newID
	epic.Title = newTitle
	epic.UpdatedAt = time.Now()
	spec, err := e.Store.Def.LoadEpicSpec(epicID)
	if err != nil {
		return fail("epic spec (read)", err)
	}
	if err := e.Store.Def.SaveEpicSpec(newID.String(), spec); err != nil {
		return fail("epic spec", err)
	}
	moved = append(moved, "specs/"+newID.String()+".md")
	if err := e.Store.Def.SaveEpic(epic); err != nil {
		return fail("epic record", err)
	}
	moved = append(moved, "epics/"+newID.String()+".json")
	_ = e.Store.Def.DeleteEpic(epicID)
	_ = e.Store.Def.DeleteEpicSpec(epicID)

	if oldCheckpoint := e.Store.Def.Paths.CheckpointFile(epicID); atomicio.Exists(oldCheckpoint) {
		content, err := atomicio.ReadText(oldCheckpoint)
		if err == nil {
			newCheckpoint := e.Store.Def.Paths.CheckpointFile(newID.String())
			if err := atomicio.WriteText(newCheckpoint, content); err == nil {
				moved = append(moved, ".checkpoint-"+newID.String()+".json")
				_ = os.Remove(oldCheckpoint)
			}
		}
	}

	rewriteTaskID := func(old domain.TaskID) domain.TaskID {
		if old.Epic.String() == epicID {
			return domain.TaskID{Epic: newID, Num: old.Num}
		}
		return old
	}

	for _, oldTaskID := range taskIDs {
		def, err := e.Store.Def.LoadTask(oldTaskID)
		if err != nil {
			return fail("task "+oldTaskID, err)
		}
		taskSpec, err := e.Store.Def.LoadTaskSpec(oldTaskID)
		if err != nil {
			return fail("task spec "+oldTaskID, err)
		}

		def.ID = domain.TaskID{Epic: newID, Num: def.ID.Num}
		def.Epic = newID
		for i, d := range def.DependsOn {
			def.DependsOn[i] = rewriteTaskID(d)
		}
		newTaskID := def.ID.String()

		if err := e.Store.Def.SaveTaskSpec(newTaskID, taskSpec); err != nil {
			return fail("task spec "+newTaskID, err)
		}
		moved = append(moved, "tasks/"+newTaskID+".md")
		if err := e.Store.Def.SaveTask(def); err != nil {
			return fail("task "+newTaskID, err)
		}
		moved = append(moved, "tasks/"+newTaskID+".json")

		if rt, has, err := e.Store.Runtime.LoadRuntime(oldTaskID); err == nil && has {
			if err := e.Store.Runtime.SaveRuntime(newTaskID, rt); err != nil {
				return fail("runtime "+newTaskID, err)
			}
			_ = e.Store.Runtime.DeleteRuntime(oldTaskID)
		}
		_ = e.Store.Def.DeleteTask(oldTaskID)
		_ = e.Store.Def.DeleteTaskSpec(oldTaskID)
	}

	otherEpicIDs, err := e.Store.Def.ListEpicIDs()
	if err != nil {
		return fail("scanning epics", err)
	}
	for _, otherID := range otherEpicIDs {
		if otherID == newID.String() {
			continue
		}
		other, err := e.Store.Def.LoadEpic(otherID)
		if err != nil {
			continue
		}
		changed := false
		for i, d := range other.DependsOnEpics {
			if d.String() == epicID {
				other.DependsOnEpics[i] = newID
				changed = true
			}
		}
		if changed {
			other.UpdatedAt = time.Now()
			if err := e.Store.Def.SaveEpic(other); err != nil {
				return fail("epic reference in "+otherID, err)
			}
		}
	}

	return RenameResult{OldID: epicID, NewID: newID.String(), Moved: moved}, nil
}
