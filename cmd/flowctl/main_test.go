package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// setupGitRepo creates a throwaway git repository and chdirs the test
// process into it.
func setupGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")
	t.Chdir(dir)
	return dir
}

// runCLI executes rootCmd with args, capturing stdout and resetting
// jsonOutput (a package-level flag var) before and after so one test's
// --json flag doesn't leak into the next.
func runCLI(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	jsonOutput = false

	oldOut := os.Stdout
	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatal(pipeErr)
	}
	os.Stdout = w

	rootCmd.SetArgs(args)
	err = rootCmd.Execute()

	w.Close()
	os.Stdout = oldOut
	var buf bytes.Buffer
	buf.ReadFrom(r)

	jsonOutput = false
	return buf.String(), err
}

// createEpic creates an epic with title and returns its id, parsed from
// the --json create output.
func createEpic(t *testing.T, title string) string {
	t.Helper()
	out, err := runCLI(t, "--json", "epic", "create", "--title", title)
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		ID string `json:"id"`
	}
	if jsonErr := json.Unmarshal([]byte(out), &result); jsonErr != nil {
		t.Fatalf("unmarshal epic create output %q: %v", out, jsonErr)
	}
	return result.ID
}

// createTask creates a task under epicID and returns its id.
func createTask(t *testing.T, epicID, title string, extraArgs ...string) string {
	t.Helper()
	args := append([]string{"--json", "task", "create", "--epic", epicID, "--title", title}, extraArgs...)
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatal(err)
	}
	var result struct {
		ID string `json:"id"`
	}
	if jsonErr := json.Unmarshal([]byte(out), &result); jsonErr != nil {
		t.Fatalf("unmarshal task create output %q: %v", out, jsonErr)
	}
	return result.ID
}

func TestInit_CreatesFlowDir(t *testing.T) {
	dir := setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	if _, statErr := os.Stat(dir + "/.flow/meta.json"); statErr != nil {
		t.Errorf("expected .flow/meta.json to exist after init: %v", statErr)
	}
}

func TestStatus_BeforeInitFails(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "status"); err == nil {
		t.Error("expected status to fail before init")
	}
}

func TestEpicAndTaskLifecycle_EndToEnd(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}

	epicID := createEpic(t, "First Epic")
	taskID := createTask(t, epicID, "First Task")

	if _, err := runCLI(t, "start", taskID); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "done", taskID, "--summary", "finished"); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--json", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"tasks_done": 1`) {
		t.Errorf("status output = %q, want tasks_done: 1", out)
	}

	if _, err := runCLI(t, "epic", "close", epicID); err != nil {
		t.Errorf("expected close to succeed once its only task is done: %v", err)
	}
}

func TestTaskStart_BlocksOnUnmetDependency(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	epicID := createEpic(t, "Epic")
	depID := createTask(t, epicID, "Dep")
	dependentID := createTask(t, epicID, "Dependent", "--deps", depID)

	if _, err := runCLI(t, "start", dependentID); err == nil {
		t.Error("expected start to fail while its dependency is still todo")
	}
}

func TestConfigGetSet_RoundTrip(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "config", "set", "codex_model", "o3"); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "config", "get", "codex_model")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "o3" {
		t.Errorf("config get codex_model = %q, want o3", out)
	}

	if _, err := runCLI(t, "config", "get", "nonexistent_key"); err == nil {
		t.Error("expected an error for an unknown config key")
	}
}

func TestValidate_FreshInitIsOK(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "validate"); err != nil {
		t.Errorf("expected a freshly initialized store to validate cleanly: %v", err)
	}
}

func TestScheduleReady_ListsCreatedTask(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	epicID := createEpic(t, "Epic")
	taskID := createTask(t, epicID, "Task")

	out, err := runCLI(t, "ready")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ready "+taskID) {
		t.Errorf("ready output = %q, want %s listed as ready", out, taskID)
	}
}

func TestShowAndCat(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	epicID := createEpic(t, "Epic")
	taskID := createTask(t, epicID, "Task")

	out, err := runCLI(t, "show", taskID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, taskID) {
		t.Errorf("show output = %q, want it to mention %s", out, taskID)
	}

	out, err = runCLI(t, "epics")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, epicID) {
		t.Errorf("epics output = %q, want it to list %s", out, epicID)
	}

	out, err = runCLI(t, "tasks", "--epic", epicID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, taskID) {
		t.Errorf("tasks output = %q, want it to list %s", out, taskID)
	}

	out, err = runCLI(t, "cat", taskID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "#") {
		t.Errorf("cat output = %q, want markdown headings", out)
	}
}

func TestCodexCheck_ReportsBackendRegardlessOfBinaryPresence(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	out, _ := runCLI(t, "--json", "codex", "check")
	if !strings.Contains(out, `"review_backend"`) {
		t.Errorf("codex check output = %q, want it to report review_backend either way", out)
	}
}

func TestCheckpointSaveAndRestore(t *testing.T) {
	setupGitRepo(t)
	if _, err := runCLI(t, "init"); err != nil {
		t.Fatal(err)
	}
	epicID := createEpic(t, "Epic")

	if _, err := runCLI(t, "checkpoint", "save", "--epic", epicID); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "checkpoint", "restore", "--epic", epicID); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "checkpoint", "delete", "--epic", epicID); err != nil {
		t.Fatal(err)
	}
}
