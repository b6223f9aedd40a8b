// Package store implements the split persistence layer: a git-tracked
// definition store (epics, tasks, specs) and a git-ignored runtime store
// (per-task status/claim/evidence, shared across worktrees).
package store

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
)

// SupportedSchemaVersions lists the meta.json schema versions this build
// understands.
var SupportedSchemaVersions = map[int]bool{1: true, 2: true}

// Meta is the contents of .flow/meta.json.
type Meta struct {
	SchemaVersion int `json:"schema_version"`
}

// DefinitionStore reads and writes the git-tracked portion of the store.
type DefinitionStore struct {
	Paths atomicio.Paths
}

// NewDefinitionStore builds a DefinitionStore rooted at paths.
func NewDefinitionStore(paths atomicio.Paths) *DefinitionStore {
	return &DefinitionStore{Paths: paths}
}

// Init lays out the .flow directory structure and writes meta.json, if it
// does not already exist. Running it twice is a no-op on the second call.
func (s *DefinitionStore) Init() error {
	if atomicio.Exists(s.Paths.MetaFile()) {
		return nil
	}
	for _, dir := range []string{s.Paths.EpicsDir(), s.Paths.SpecsDir(), s.Paths.TasksDir(), s.Paths.MemoryDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return atomicio.WriteJSON(s.Paths.MetaFile(), Meta{SchemaVersion: 2})
}

// Exists reports whether .flow has been initialized.
func (s *DefinitionStore) Exists() bool {
	return atomicio.Exists(s.Paths.MetaFile())
}

// LoadMeta reads and validates meta.json.
func (s *DefinitionStore) LoadMeta() (Meta, error) {
	var m Meta
	if !atomicio.Exists(s.Paths.MetaFile()) {
		return m, flowerr.New(flowerr.KindNotFound, "meta.json missing; run init")
	}
	if err := atomicio.ReadJSON(s.Paths.MetaFile(), &m); err != nil {
		return m, flowerr.Wrap(flowerr.KindMalformed, "meta.json invalid", err)
	}
	if !SupportedSchemaVersions[m.SchemaVersion] {
		return m, flowerr.Newf(flowerr.KindMalformed, "unsupported schema_version %d", m.SchemaVersion)
	}
	return m, nil
}

// LoadEpic reads an epic definition by id string.
func (s *DefinitionStore) LoadEpic(id string) (domain.Epic, error) {
	var e domain.Epic
	path := s.Paths.EpicFile(id)
	if !atomicio.Exists(path) {
		return e, flowerr.Newf(flowerr.KindNotFound, "epic %s not found", id)
	}
	if err := atomicio.ReadJSON(path, &e); err != nil {
		return e, flowerr.Wrap(flowerr.KindMalformed, fmt.Sprintf("epic %s invalid", id), err)
	}
	return e, nil
}

// SaveEpic atomically writes an epic definition.
func (s *DefinitionStore) SaveEpic(e domain.Epic) error {
	return atomicio.WriteJSON(s.Paths.EpicFile(e.ID.String()), e)
}

// DeleteEpic removes an epic's definition file (used by rename, after the
// content has been written under the new id).
func (s *DefinitionStore) DeleteEpic(id string) error {
	return removeIfExists(s.Paths.EpicFile(id))
}

// ListEpicIDs returns every epic id with a JSON definition file, sorted
// numerically.
func (s *DefinitionStore) ListEpicIDs() ([]string, error) {
	return listIDs(s.Paths.EpicsDir(), `^(fn-\d+(?:-[a-z0-9](?:-?[a-z0-9])*)?)\.json$`)
}

// LoadEpicSpec reads an epic's markdown spec.
func (s *DefinitionStore) LoadEpicSpec(id string) (string, error) {
	path := s.Paths.EpicSpecFile(id)
	if !atomicio.Exists(path) {
		return "", flowerr.Newf(flowerr.KindNotFound, "epic spec %s not found", id)
	}
	return atomicio.ReadText(path)
}

// SaveEpicSpec atomically writes an epic's markdown spec.
func (s *DefinitionStore) SaveEpicSpec(id, content string) error {
	return atomicio.WriteText(s.Paths.EpicSpecFile(id), content)
}

// DeleteEpicSpec removes an epic's spec file.
func (s *DefinitionStore) DeleteEpicSpec(id string) error {
	return removeIfExists(s.Paths.EpicSpecFile(id))
}

// LoadTask reads a task definition by id string. Legacy runtime fields
// embedded by older schemas are preserved on the returned value for the
// backward-compat overlay in the runtime store.
func (s *DefinitionStore) LoadTask(id string) (domain.TaskDef, error) {
	var t domain.TaskDef
	path := s.Paths.TaskFile(id)
	if !atomicio.Exists(path) {
		return t, flowerr.Newf(flowerr.KindNotFound, "task %s not found", id)
	}
	if err := atomicio.ReadJSON(path, &t); err != nil {
		return t, flowerr.Wrap(flowerr.KindMalformed, fmt.Sprintf("task %s invalid", id), err)
	}
	return t, nil
}

// SaveTask atomically writes a task definition. Legacy runtime fields are
// stripped unless the caller explicitly set them (definition writes are
// otherwise hygienic by default).
func (s *DefinitionStore) SaveTask(t domain.TaskDef) error {
	return atomicio.WriteJSON(s.Paths.TaskFile(t.ID.String()), t)
}

// DeleteTask removes a task's definition file.
func (s *DefinitionStore) DeleteTask(id string) error {
	return removeIfExists(s.Paths.TaskFile(id))
}

// ListTaskIDs returns every task id with a JSON definition file belonging
// to epicID (or all tasks if epicID is empty), sorted by (epic_num,
// task_num).
func (s *DefinitionStore) ListTaskIDs(epicID string) ([]string, error) {
	entries, err := os.ReadDir(s.Paths.TasksDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Paths.TasksDir(), err)
	}
	taskFileRegex := regexp.MustCompile(`^(.+)\.json$`)
	var ids []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		m := taskFileRegex.FindStringSubmatch(ent.Name())
		if m == nil {
			continue
		}
		id := m[1]
		if epicID != "" {
			prefix, ok := domain.EpicOf(id)
			if !ok || prefix != epicID {
				continue
			}
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, erri := domain.ParseTaskID(ids[i])
		tj, errj := domain.ParseTaskID(ids[j])
		if erri != nil || errj != nil {
			return ids[i] < ids[j]
		}
		return ti.Less(tj)
	})
	return ids, nil
}

// LoadTaskSpec reads a task's markdown spec.
func (s *DefinitionStore) LoadTaskSpec(id string) (string, error) {
	path := s.Paths.TaskSpecFile(id)
	if !atomicio.Exists(path) {
		return "", flowerr.Newf(flowerr.KindNotFound, "task spec %s not found", id)
	}
	return atomicio.ReadText(path)
}

// SaveTaskSpec atomically writes a task's markdown spec.
func (s *DefinitionStore) SaveTaskSpec(id, content string) error {
	return atomicio.WriteText(s.Paths.TaskSpecFile(id), content)
}

// DeleteTaskSpec removes a task's spec file.
func (s *DefinitionStore) DeleteTaskSpec(id string) error {
	return removeIfExists(s.Paths.TaskSpecFile(id))
}

// NextEpicNum computes the next epic number via scan-based allocation:
// 1 + max(existing epic numbers across epics/ and specs/), unioned to
// catch orphan specs.
func (s *DefinitionStore) NextEpicNum() (int, error) {
	max := 0
	for _, dir := range []string{s.Paths.EpicsDir(), s.Paths.SpecsDir()} {
		n, err := maxNumInDir(dir, `^fn-(\d+)(?:-[a-z0-9](?:-?[a-z0-9])*)?\.(?:json|md)$`)
		if err != nil {
			return 0, err
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// NextTaskNum computes the next task number for epicID: 1 + max(existing
// task numbers for that epic across tasks/*.json and tasks/*.md).
func (s *DefinitionStore) NextTaskNum(epicID string) (int, error) {
	escaped := regexp.QuoteMeta(epicID)
	pattern := fmt.Sprintf(`^%s\.(\d+)\.(?:json|md)$`, escaped)
	max, err := maxNumInDir(s.Paths.TasksDir(), pattern)
	if err != nil {
		return 0, err
	}
	return max + 1, nil
}

func maxNumInDir(dir, pattern string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	re := regexp.MustCompile(pattern)
	max := 0
	for _, ent := range entries {
		m := re.FindStringSubmatch(ent.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

func listIDs(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	re := regexp.MustCompile(pattern)
	var ids []string
	for _, ent := range entries {
		m := re.FindStringSubmatch(ent.Name())
		if m == nil {
			continue
		}
		ids = append(ids, m[1])
	}
	sort.Slice(ids, func(i, j int) bool {
		ei, erri := domain.ParseEpicID(ids[i])
		ej, errj := domain.ParseEpicID(ids[j])
		if erri != nil || errj != nil {
			return ids[i] < ids[j]
		}
		return ei.Less(ej)
	})
	return ids, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// EpicOrTaskExists reports whether a definition file already exists for
// id, checking both the JSON and, for epics, the spec file — used as the
// collision guard after scan-based allocation picks a candidate id.
func (s *DefinitionStore) EpicOrTaskExists(id string) bool {
	if domain.IsEpicID(id) {
		return atomicio.Exists(s.Paths.EpicFile(id)) || atomicio.Exists(s.Paths.EpicSpecFile(id))
	}
	return atomicio.Exists(s.Paths.TaskFile(id)) || atomicio.Exists(s.Paths.TaskSpecFile(id))
}

// touchEpic stamps UpdatedAt to now on an epic.
func touchEpic(e *domain.Epic, now time.Time) { e.UpdatedAt = now }

// touchTask stamps UpdatedAt to now on a task definition.
func touchTask(t *domain.TaskDef, now time.Time) { t.UpdatedAt = now }
