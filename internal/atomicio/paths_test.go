package atomicio

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, args := range [][]string{
		{"git", "init"},
		{"git", "config", "user.email", "test@test.com"},
		{"git", "config", "user.name", "Test"},
	} {
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%v failed: %s", args, out)
		}
	}
	return dir
}

func TestResolve_StateDirOverride(t *testing.T) {
	dir := setupGitRepo(t)
	override := filepath.Join(t.TempDir(), "custom-state")
	t.Setenv("FLOW_STATE_DIR", override)

	paths := Resolve(dir)
	if paths.StateDir != override {
		t.Errorf("StateDir = %q, want override %q", paths.StateDir, override)
	}
	if paths.RepoRoot != dir {
		t.Errorf("RepoRoot = %q, want %q", paths.RepoRoot, dir)
	}
	if paths.FlowDir != filepath.Join(dir, FlowDirName) {
		t.Errorf("FlowDir = %q, want %s/%s", paths.FlowDir, dir, FlowDirName)
	}
}

func TestResolve_StateDirFromCommonDir(t *testing.T) {
	dir := setupGitRepo(t)
	os.Unsetenv("FLOW_STATE_DIR")

	paths := Resolve(dir)
	want := filepath.Join(dir, ".git", "flowctl-state")
	if paths.StateDir != want {
		t.Errorf("StateDir = %q, want %q", paths.StateDir, want)
	}
}

func TestPaths_DerivedFilePaths(t *testing.T) {
	p := Paths{RepoRoot: "/repo", FlowDir: "/repo/.flow", StateDir: "/state"}

	if got, want := p.EpicFile("fn-1"), filepath.Join("/repo/.flow/epics", "fn-1.json"); got != want {
		t.Errorf("EpicFile = %q, want %q", got, want)
	}
	if got, want := p.TaskSpecFile("fn-1.2"), filepath.Join("/repo/.flow/tasks", "fn-1.2.md"); got != want {
		t.Errorf("TaskSpecFile = %q, want %q", got, want)
	}
	if got, want := p.RuntimeFile("fn-1.2"), filepath.Join("/state/tasks", "fn-1.2.state.json"); got != want {
		t.Errorf("RuntimeFile = %q, want %q", got, want)
	}
	if got, want := p.LockFile("fn-1.2"), filepath.Join("/state/locks", "fn-1.2.lock"); got != want {
		t.Errorf("LockFile = %q, want %q", got, want)
	}
	if got, want := p.CheckpointFile("fn-1"), filepath.Join("/repo/.flow", ".checkpoint-fn-1.json"); got != want {
		t.Errorf("CheckpointFile = %q, want %q", got, want)
	}
}
