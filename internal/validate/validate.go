// Package validate checks root, per-epic, and cross-epic invariants:
// schema version, dependency existence, spec heading structure, and
// dependency-graph acyclicity.
package validate

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/specpatch"
	"github.com/hochfrequenz/flowctl/internal/store"
)

// Result holds the errors (and, for all-epics mode, warnings) found.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the result has no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Root validates meta.json and the required subdirectories.
func Root(s *store.Store) Result {
	var r Result
	if _, err := s.Def.LoadMeta(); err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}
	for _, dir := range []string{s.Def.Paths.EpicsDir(), s.Def.Paths.SpecsDir(), s.Def.Paths.TasksDir(), s.Def.Paths.MemoryDir()} {
		if _, err := os.Stat(dir); err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("required directory missing: %s", dir))
		}
	}
	return r
}

// Epic validates a single epic: record/spec existence, dependency
// validity, task spec heading structure, per-task dependency resolution,
// acyclicity, and the closed-epic completeness invariant.
func Epic(s *store.Store, epicID string) Result {
	var r Result

	epic, err := s.Def.LoadEpic(epicID)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}
	if _, err := s.Def.LoadEpicSpec(epicID); err != nil {
		r.Errors = append(r.Errors, err.Error())
	}

	for _, dep := range epic.DependsOnEpics {
		if dep.String() == epic.ID.String() {
			r.Errors = append(r.Errors, fmt.Sprintf("epic %s depends on itself", epicID))
			continue
		}
		if !s.Def.EpicOrTaskExists(dep.String()) {
			r.Errors = append(r.Errors, fmt.Sprintf("epic %s depends on missing epic %s", epicID, dep))
		}
	}

	taskIDs, err := s.Def.ListTaskIDs(epicID)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}

	defs := make(map[string]domain.TaskDef, len(taskIDs))
	allDone := true
	for _, id := range taskIDs {
		def, err := s.Def.LoadTask(id)
		if err != nil {
			r.Errors = append(r.Errors, err.Error())
			continue
		}
		defs[id] = def

		spec, err := s.Def.LoadTaskSpec(id)
		if err != nil {
			r.Errors = append(r.Errors, err.Error())
		} else if errs := specpatch.ValidateTaskSpecHeadings(spec); len(errs) > 0 {
			for _, e := range errs {
				r.Errors = append(r.Errors, fmt.Sprintf("task %s: %s", id, e))
			}
		}

		status, err := s.MergedStatusOf(id)
		if err != nil {
			r.Errors = append(r.Errors, err.Error())
			continue
		}
		if !isValidStatus(status) {
			r.Errors = append(r.Errors, fmt.Sprintf("task %s has invalid status %q", id, status))
		}
		if status != domain.TaskDone {
			allDone = false
		}

		for _, dep := range def.DependsOn {
			depEpic, _ := domain.EpicOf(dep.String())
			if depEpic != epicID {
				r.Errors = append(r.Errors, fmt.Sprintf("task %s depends on %s outside its epic", id, dep))
				continue
			}
			if _, ok := defs[dep.String()]; !ok && !s.Def.EpicOrTaskExists(dep.String()) {
				r.Errors = append(r.Errors, fmt.Sprintf("task %s depends on missing task %s", id, dep))
			}
		}
	}

	if cycle := findCycle(defs); cycle != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("dependency cycle detected: %s", formatCycle(cycle)))
	}

	if epic.Status == domain.EpicDone && !allDone {
		r.Errors = append(r.Errors, fmt.Sprintf("epic %s is closed but has incomplete tasks", epicID))
	}

	return r
}

func isValidStatus(s domain.TaskStatus) bool {
	switch s {
	case domain.TaskTodo, domain.TaskInProgress, domain.TaskBlocked, domain.TaskDone:
		return true
	default:
		return false
	}
}

// findCycle runs a DFS with a recursion stack over the dependency graph
// and returns the first cycle found as an ordered chain of task ids, or
// nil if the graph is acyclic.
func findCycle(defs map[string]domain.TaskDef) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(defs))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		stack = append(stack, id)
		for _, dep := range defs[id].DependsOn {
			depID := dep.String()
			if color[depID] == gray {
				// found the back edge; extract the cycle portion of stack
				start := 0
				for i, s := range stack {
					if s == depID {
						start = i
						break
					}
				}
				cycle = append([]string{}, stack[start:]...)
				cycle = append(cycle, depID)
				return true
			}
			if color[depID] == white {
				if _, ok := defs[depID]; ok && visit(depID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for id := range defs {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return nil
}

func formatCycle(cycle []string) string {
	out := ""
	for i, id := range cycle {
		if i > 0 {
			out += " -> "
		}
		out += id
	}
	return out
}

// AllEpics validates every epic concurrently via errgroup, then checks
// cross-epic invariants: numeric-id collisions between distinct slugs,
// and orphan specs with no matching epic record.
func AllEpics(s *store.Store) (Result, error) {
	root := Root(s)
	if !root.OK() {
		return root, nil
	}

	epicIDs, err := s.Def.ListEpicIDs()
	if err != nil {
		return Result{}, err
	}

	results := make([]Result, len(epicIDs))
	g, _ := errgroup.WithContext(context.Background())
	for i, id := range epicIDs {
		i, id := i, id
		g.Go(func() error {
			results[i] = Epic(s, id)
			return nil
		})
	}
	_ = g.Wait()

	var combined Result
	for i, id := range epicIDs {
		for _, e := range results[i].Errors {
			combined.Errors = append(combined.Errors, fmt.Sprintf("%s: %s", id, e))
		}
	}

	combined.Warnings = append(combined.Warnings, detectCollisions(epicIDs)...)
	combined.Warnings = append(combined.Warnings, detectOrphanSpecs(s, epicIDs)...)

	return combined, nil
}

func detectCollisions(epicIDs []string) []string {
	byNum := map[int][]string{}
	for _, id := range epicIDs {
		parsed, err := domain.ParseEpicID(id)
		if err != nil {
			continue
		}
		byNum[parsed.Num] = append(byNum[parsed.Num], id)
	}
	var warnings []string
	for num, ids := range byNum {
		if len(ids) > 1 {
			warnings = append(warnings, fmt.Sprintf("epic id collision at fn-%d: %v", num, ids))
		}
	}
	return warnings
}

func detectOrphanSpecs(s *store.Store, epicIDs []string) []string {
	known := make(map[string]bool, len(epicIDs))
	for _, id := range epicIDs {
		known[id] = true
	}
	entries, err := os.ReadDir(s.Def.Paths.SpecsDir())
	if err != nil {
		return nil
	}
	var warnings []string
	for _, ent := range entries {
		name := ent.Name()
		if len(name) < 4 || name[len(name)-3:] != ".md" {
			continue
		}
		id := name[:len(name)-3]
		if !known[id] {
			warnings = append(warnings, fmt.Sprintf("orphan spec with no matching epic: %s", name))
		}
	}
	return warnings
}
