package store

import "github.com/hochfrequenz/flowctl/internal/domain"

// MigratedTask reports the outcome of migrating one task's state.
type MigratedTask struct {
	ID        string
	Migrated  bool
	Cleaned   bool
}

// MigrateState extracts legacy runtime fields embedded in task definition
// files into the runtime store, for every task that doesn't already have a
// runtime file. If clean is set, the legacy fields are also stripped from
// the definition once they've been copied out.
func (s *Store) MigrateState(clean bool) ([]MigratedTask, error) {
	epicIDs, err := s.Def.ListEpicIDs()
	if err != nil {
		return nil, err
	}

	var results []MigratedTask
	for _, epicID := range epicIDs {
		taskIDs, err := s.Def.ListTaskIDs(epicID)
		if err != nil {
			return nil, err
		}
		for _, taskID := range taskIDs {
			r, err := s.migrateOne(taskID, clean)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
	}
	return results, nil
}

func (s *Store) migrateOne(taskID string, clean bool) (MigratedTask, error) {
	result := MigratedTask{ID: taskID}

	err := s.Runtime.WithLock(taskID, func() error {
		_, hasRuntime, err := s.Runtime.LoadRuntime(taskID)
		if err != nil {
			return err
		}
		if hasRuntime {
			return nil
		}

		def, err := s.Def.LoadTask(taskID)
		if err != nil {
			return err
		}
		if !def.HasLegacyRuntimeFields() {
			return nil
		}

		extracted := MergedStatusFromDef(def, domain.Runtime{}, false)
		if err := s.Runtime.SaveRuntime(taskID, extracted); err != nil {
			return err
		}
		result.Migrated = true

		if clean {
			def.StripLegacyRuntimeFields()
			if err := s.Def.SaveTask(def); err != nil {
				return err
			}
			result.Cleaned = true
		}
		return nil
	})
	if err != nil {
		return MigratedTask{}, err
	}
	return result, nil
}
