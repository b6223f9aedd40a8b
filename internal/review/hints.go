package review

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// maxContextHints bounds the number of hints surfaced to the reviewer, so a
// large diff doesn't drown the prompt in symbol cross-references.
const maxContextHints = 15

// symbolPattern extracts a handful of declaration shapes common across Go,
// Python, JS/TS, and shell — good enough for "what does this diff touch"
// hints, not a real parser.
var symbolPattern = regexp.MustCompile(`(?m)^(?:func|def|class|type|interface|struct)\s+(\(\s*\w+\s+\*?\w+\s*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)`)

// CollectContextHints greps the repository for references to symbols
// declared in the changed files, one grep per file run concurrently. A
// file that fails to parse (no symbols found, or the grep errors) is
// skipped rather than aborting hint collection for the rest of the diff.
func CollectContextHints(ctx context.Context, repoRoot string, changedFiles map[string]string) []string {
	type fileHints struct {
		file string
		refs []string
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]fileHints, len(changedFiles))
	files := make([]string, 0, len(changedFiles))
	for f := range changedFiles {
		files = append(files, f)
	}
	sort.Strings(files)

	for i, f := range files {
		i, f := i, f
		content := changedFiles[f]
		g.Go(func() error {
			symbols := extractSymbols(content)
			var refs []string
			for _, sym := range symbols {
				lines := grepSymbol(gctx, repoRoot, sym, f)
				refs = append(refs, lines...)
			}
			results[i] = fileHints{file: f, refs: refs}
			return nil
		})
	}
	_ = g.Wait()

	var hints []string
	for _, r := range results {
		for _, ref := range r.refs {
			hints = append(hints, fmt.Sprintf("%s: %s", r.file, ref))
			if len(hints) >= maxContextHints {
				return hints
			}
		}
	}
	return hints
}

func extractSymbols(content string) []string {
	matches := symbolPattern.FindAllStringSubmatch(content, -1)
	seen := map[string]bool{}
	var symbols []string
	for _, m := range matches {
		name := m[2]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		symbols = append(symbols, name)
	}
	return symbols
}

// grepSymbol runs `git grep` for sym outside of excludeFile, returning up
// to 3 matching lines. Any error (no git, no matches, binary noise) is
// treated as "no references found" rather than propagated.
func grepSymbol(ctx context.Context, repoRoot, sym, excludeFile string) []string {
	cmd := exec.CommandContext(ctx, "git", "grep", "-n", "-F", "-w", sym, "--", ".", ":(exclude)"+excludeFile)
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return nil
	}
	var refs []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		refs = append(refs, line)
		if len(refs) >= 3 {
			break
		}
	}
	return refs
}
