package review

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

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
	return dir
}

func TestExtractSymbols_FindsDeclarations(t *testing.T) {
	content := "package foo\n\nfunc DoThing() error {\n\treturn nil\n}\n\ntype Widget struct{}\n"
	symbols := extractSymbols(content)
	want := map[string]bool{"DoThing": true, "Widget": true}
	if len(symbols) != len(want) {
		t.Fatalf("symbols = %v, want %v", symbols, want)
	}
	for _, s := range symbols {
		if !want[s] {
			t.Errorf("unexpected symbol %q", s)
		}
	}
}

func TestExtractSymbols_MethodReceiverIgnored(t *testing.T) {
	content := "func (e *Engine) Start() error { return nil }\n"
	symbols := extractSymbols(content)
	if len(symbols) != 1 || symbols[0] != "Start" {
		t.Errorf("symbols = %v, want just [Start]", symbols)
	}
}

func TestCollectContextHints_FindsCrossFileReferences(t *testing.T) {
	root := setupGitRepo(t)
	if err := os.WriteFile(filepath.Join(root, "widget.go"), []byte("package foo\n\nfunc NewWidget() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "caller.go"), []byte("package foo\n\nfunc useIt() { NewWidget() }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command("git", "add", "-A")
	cmd.Dir = root
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git add: %v\n%s", err, out)
	}

	changed := map[string]string{"widget.go": "func NewWidget() {}\n"}
	hints := CollectContextHints(context.Background(), root, changed)

	found := false
	for _, h := range hints {
		if h != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("hints = %v, want at least one reference to NewWidget from caller.go", hints)
	}
}

func TestCollectContextHints_NoSymbolsProducesNoHints(t *testing.T) {
	root := setupGitRepo(t)
	hints := CollectContextHints(context.Background(), root, map[string]string{"empty.go": "package foo\n"})
	if len(hints) != 0 {
		t.Errorf("hints = %v, want none for a file with no declarations", hints)
	}
}
