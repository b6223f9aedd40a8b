package store

import (
	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
)

// Store composes the definition and runtime stores into the single entry
// point most commands use.
type Store struct {
	Def     *DefinitionStore
	Runtime *RuntimeStore
}

// New builds a Store from resolved paths.
func New(paths atomicio.Paths) *Store {
	return &Store{Def: NewDefinitionStore(paths), Runtime: NewRuntimeStore(paths)}
}

// LoadMergedTask reads a task's definition and runtime and overlays them.
func (s *Store) LoadMergedTask(id string) (domain.MergedTask, error) {
	def, err := s.Def.LoadTask(id)
	if err != nil {
		return domain.MergedTask{}, err
	}
	rt, hasRuntime, err := s.Runtime.LoadRuntime(id)
	if err != nil {
		return domain.MergedTask{}, err
	}
	effective := MergedStatusFromDef(def, rt, hasRuntime)
	return domain.Merge(def, effective), nil
}

// MergedStatusOf returns just the merged status for id, used by
// dependency-readiness checks that don't need the full task.
func (s *Store) MergedStatusOf(id string) (domain.TaskStatus, error) {
	t, err := s.LoadMergedTask(id)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}
