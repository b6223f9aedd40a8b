package store

import (
	"fmt"
	"os"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
)

// RuntimeStore reads and writes the git-ignored, worktree-shared portion
// of task state, and serializes per-task mutations through advisory
// locks on the state dir.
type RuntimeStore struct {
	Paths atomicio.Paths
}

// NewRuntimeStore builds a RuntimeStore rooted at paths.
func NewRuntimeStore(paths atomicio.Paths) *RuntimeStore {
	return &RuntimeStore{Paths: paths}
}

// LoadRuntime returns the stored runtime object for taskID, or (zero,
// false) if no runtime file exists — callers apply the definition-fallback
// overlay themselves since that requires the task's definition record.
func (s *RuntimeStore) LoadRuntime(taskID string) (domain.Runtime, bool, error) {
	var rt domain.Runtime
	path := s.Paths.RuntimeFile(taskID)
	if !atomicio.Exists(path) {
		return rt, false, nil
	}
	if err := atomicio.ReadJSON(path, &rt); err != nil {
		return rt, false, fmt.Errorf("runtime state %s invalid: %w", taskID, err)
	}
	return rt, true, nil
}

// SaveRuntime atomically writes rt for taskID. Callers are expected to
// have already taken WithLock for the duration of the read-modify-write.
func (s *RuntimeStore) SaveRuntime(taskID string, rt domain.Runtime) error {
	return atomicio.WriteJSON(s.Paths.RuntimeFile(taskID), rt)
}

// ResetRuntime overwrites taskID's runtime with the baseline {status:
// todo}, clearing claim, evidence, and blocked reason.
func (s *RuntimeStore) ResetRuntime(taskID string, now time.Time) error {
	return s.SaveRuntime(taskID, domain.NewRuntime(now))
}

// DeleteRuntime removes taskID's runtime file, if any.
func (s *RuntimeStore) DeleteRuntime(taskID string) error {
	err := os.Remove(s.Paths.RuntimeFile(taskID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WithLock acquires an exclusive advisory lock on taskID's lock file for
// the duration of f, then releases it. On platforms without advisory
// locking this degrades to a no-op — still safe for a single invocation's
// own serialization, best-effort across concurrent processes.
func (s *RuntimeStore) WithLock(taskID string, f func() error) error {
	if err := os.MkdirAll(s.Paths.LocksDir(), 0o755); err != nil {
		return fmt.Errorf("creating locks dir: %w", err)
	}
	lock, err := acquireLock(s.Paths.LockFile(taskID))
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", taskID, err)
	}
	defer lock.release()
	return f()
}

// MergedStatusFromDef returns the merged view of a task's runtime state,
// applying the backward-compatibility overlay described in the task
// definition's legacy fields when no runtime file exists.
func MergedStatusFromDef(def domain.TaskDef, rt domain.Runtime, hasRuntime bool) domain.Runtime {
	if hasRuntime {
		return rt
	}
	if def.HasLegacyRuntimeFields() {
		legacy := domain.Runtime{
			Status:        def.LegacyStatus,
			Assignee:      def.LegacyAssignee,
			ClaimedAt:     def.LegacyClaimedAt,
			ClaimNote:     def.LegacyClaimNote,
			BlockedReason: def.LegacyBlockedReas,
			UpdatedAt:     def.UpdatedAt,
		}
		if legacy.Status == "" {
			legacy.Status = domain.TaskTodo
		}
		if def.LegacyEvidence != nil {
			legacy.Evidence = *def.LegacyEvidence
		}
		return legacy
	}
	return domain.Runtime{Status: domain.TaskTodo, UpdatedAt: def.UpdatedAt}
}
