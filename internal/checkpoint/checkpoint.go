// Package checkpoint implements snapshot/restore of a full epic: its
// definition, spec, and every owned task's definition, spec, and runtime
// state, bundled into one file so a later restore reproduces the
// snapshot exactly.
package checkpoint

import (
	"os"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
	"github.com/hochfrequenz/flowctl/internal/store"
)

// Save writes .checkpoint-<epic>.json containing the epic's current
// definition, spec, and every task's definition, spec, and runtime. A task
// with no runtime file is written with a zero-value runtime object, not
// null; Restore treats an empty status with a zero updated_at as no runtime.
func Save(s *store.Store, epicID string) (domain.Checkpoint, error) {
	epic, err := s.Def.LoadEpic(epicID)
	if err != nil {
		return domain.Checkpoint{}, err
	}
	epicSpec, err := s.Def.LoadEpicSpec(epicID)
	if err != nil {
		return domain.Checkpoint{}, err
	}

	taskIDs, err := s.Def.ListTaskIDs(epicID)
	if err != nil {
		return domain.Checkpoint{}, err
	}

	cp := domain.Checkpoint{
		SchemaVersion: domain.CheckpointSchemaVersion,
		CreatedAt:     time.Now(),
		EpicID:        epic.ID,
		Epic:          domain.CheckpointEpic{Data: epic, Spec: epicSpec},
	}

	for _, id := range taskIDs {
		def, err := s.Def.LoadTask(id)
		if err != nil {
			return domain.Checkpoint{}, err
		}
		taskSpec, err := s.Def.LoadTaskSpec(id)
		if err != nil {
			return domain.Checkpoint{}, err
		}
		rt, hasRuntime, err := s.Runtime.LoadRuntime(id)
		if err != nil {
			return domain.Checkpoint{}, err
		}
		entry := domain.CheckpointTask{ID: def.ID, Data: def, Spec: taskSpec}
		if hasRuntime {
			entry.Runtime = rt
		}
		cp.Tasks = append(cp.Tasks, entry)
	}

	if err := atomicio.WriteJSON(s.Def.Paths.CheckpointFile(epicID), cp); err != nil {
		return domain.Checkpoint{}, err
	}
	return cp, nil
}

// Restore overwrites every recorded entity from the checkpoint file:
// epic, specs, task definitions, and runtime (writing under the per-task
// lock, or deleting any existing runtime file when the snapshot recorded
// none).
func Restore(s *store.Store, epicID string) (domain.Checkpoint, error) {
	path := s.Def.Paths.CheckpointFile(epicID)
	var cp domain.Checkpoint
	if !atomicio.Exists(path) {
		return cp, flowerr.Newf(flowerr.KindNotFound, "no checkpoint for epic %s", epicID)
	}
	if err := atomicio.ReadJSON(path, &cp); err != nil {
		return cp, flowerr.Wrap(flowerr.KindMalformed, "checkpoint invalid", err)
	}

	now := time.Now()
	epic := cp.Epic.Data
	epic.UpdatedAt = now
	if err := s.Def.SaveEpicSpec(epic.ID.String(), cp.Epic.Spec); err != nil {
		return cp, err
	}
	if err := s.Def.SaveEpic(epic); err != nil {
		return cp, err
	}

	for _, task := range cp.Tasks {
		def := task.Data
		def.UpdatedAt = now
		if err := s.Def.SaveTaskSpec(def.ID.String(), task.Spec); err != nil {
			return cp, err
		}
		if err := s.Def.SaveTask(def); err != nil {
			return cp, err
		}

		taskID := def.ID.String()
		runtime := task.Runtime
		hasRuntime := !runtime.UpdatedAt.IsZero() || runtime.Status != ""
		err := s.Runtime.WithLock(taskID, func() error {
			if hasRuntime {
				runtime.UpdatedAt = now
				return s.Runtime.SaveRuntime(taskID, runtime)
			}
			return s.Runtime.DeleteRuntime(taskID)
		})
		if err != nil {
			return cp, err
		}
	}

	return cp, nil
}

// Delete removes the checkpoint file for epicID. Deleting a missing
// checkpoint is a documented no-op, reported as success.
func Delete(s *store.Store, epicID string) error {
	path := s.Def.Paths.CheckpointFile(epicID)
	if !atomicio.Exists(path) {
		return nil
	}
	return os.Remove(path)
}
