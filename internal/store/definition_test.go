package store

import (
	"testing"
	"time"

	"github.com/hochfrequenz/flowctl/internal/atomicio"
	"github.com/hochfrequenz/flowctl/internal/domain"
	"github.com/hochfrequenz/flowctl/internal/flowerr"
)

func testPaths(t *testing.T) atomicio.Paths {
	t.Helper()
	root := t.TempDir()
	return atomicio.Paths{RepoRoot: root, FlowDir: root + "/.flow", StateDir: root + "/.flow/state"}
}

func TestDefinitionStore_InitIsIdempotent(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))

	if s.Exists() {
		t.Fatal("store should not exist before Init")
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if !s.Exists() {
		t.Fatal("store should exist after Init")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("second Init should be a no-op, got error: %v", err)
	}

	meta, err := s.LoadMeta()
	if err != nil {
		t.Fatal(err)
	}
	if meta.SchemaVersion != 2 {
		t.Errorf("SchemaVersion = %d, want 2", meta.SchemaVersion)
	}
}

func TestDefinitionStore_LoadMeta_MissingAndUnsupported(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))
	if _, err := s.LoadMeta(); flowerr.KindOf(err) != flowerr.KindNotFound {
		t.Errorf("LoadMeta before Init: KindOf = %v, want KindNotFound", flowerr.KindOf(err))
	}

	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	if err := atomicio.WriteJSON(s.Paths.MetaFile(), Meta{SchemaVersion: 99}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadMeta(); flowerr.KindOf(err) != flowerr.KindMalformed {
		t.Errorf("LoadMeta with unsupported version: KindOf = %v, want KindMalformed", flowerr.KindOf(err))
	}
}

func TestDefinitionStore_EpicRoundTrip(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	epic := domain.Epic{ID: domain.EpicID{Num: 1, Slug: "auth"}, Title: "Auth", CreatedAt: time.Now()}
	if err := s.SaveEpic(epic); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadEpic("fn-1-auth")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Auth" {
		t.Errorf("Title = %q, want Auth", got.Title)
	}

	if _, err := s.LoadEpic("fn-99"); flowerr.KindOf(err) != flowerr.KindNotFound {
		t.Errorf("LoadEpic(missing): KindOf = %v, want KindNotFound", flowerr.KindOf(err))
	}

	if err := s.DeleteEpic("fn-1-auth"); err != nil {
		t.Fatal(err)
	}
	if s.EpicOrTaskExists("fn-1-auth") {
		t.Error("epic should be gone after DeleteEpic")
	}
}

func TestDefinitionStore_TaskRoundTripAndListing(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	epicID := domain.EpicID{Num: 1}
	t1 := domain.TaskDef{ID: domain.TaskID{Epic: epicID, Num: 1}, Epic: epicID, Title: "First"}
	t2 := domain.TaskDef{ID: domain.TaskID{Epic: epicID, Num: 2}, Epic: epicID, Title: "Second"}
	if err := s.SaveTask(t1); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTask(t2); err != nil {
		t.Fatal(err)
	}

	ids, err := s.ListTaskIDs("fn-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "fn-1.1" || ids[1] != "fn-1.2" {
		t.Errorf("ListTaskIDs = %v, want [fn-1.1 fn-1.2]", ids)
	}

	got, err := s.LoadTask("fn-1.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "First" {
		t.Errorf("Title = %q, want First", got.Title)
	}
}

func TestDefinitionStore_NextEpicAndTaskNum(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	n, err := s.NextEpicNum()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("NextEpicNum on an empty store = %d, want 1", n)
	}

	epicID := domain.EpicID{Num: 3}
	if err := s.SaveEpic(domain.Epic{ID: epicID}); err != nil {
		t.Fatal(err)
	}
	n, err = s.NextEpicNum()
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("NextEpicNum after fn-3 exists = %d, want 4", n)
	}

	if err := s.SaveTask(domain.TaskDef{ID: domain.TaskID{Epic: epicID, Num: 5}, Epic: epicID}); err != nil {
		t.Fatal(err)
	}
	tn, err := s.NextTaskNum("fn-3")
	if err != nil {
		t.Fatal(err)
	}
	if tn != 6 {
		t.Errorf("NextTaskNum after .5 exists = %d, want 6", tn)
	}
}

func TestDefinitionStore_SpecRoundTrip(t *testing.T) {
	s := NewDefinitionStore(testPaths(t))
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}

	if err := s.SaveEpicSpec("fn-1", "# Plan\n"); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadEpicSpec("fn-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Plan\n" {
		t.Errorf("LoadEpicSpec = %q, want %q", got, "# Plan\n")
	}

	if err := s.DeleteEpicSpec("fn-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadEpicSpec("fn-1"); flowerr.KindOf(err) != flowerr.KindNotFound {
		t.Error("expected LoadEpicSpec to report not found after delete")
	}
}
