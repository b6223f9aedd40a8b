// Package gitutil wraps the handful of git subcommands flowctl shells out
// to: repo root and common-dir discovery, actor identity lookup, and diff
// retrieval for the review orchestrator.
package gitutil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// RepoRoot returns the top-level directory of the git working tree rooted
// at dir, or dir itself if dir is not inside a git repository.
func RepoRoot(dir string) string {
	out, err := run(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return dir
	}
	return strings.TrimSpace(out)
}

// CommonDir returns the absolute path to the git common directory for the
// repository containing dir (shared across all worktrees of one clone),
// or "" if dir is not inside a git repository.
func CommonDir(dir string) string {
	out, err := run(dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		out, err = run(dir, "rev-parse", "--git-common-dir")
		if err != nil {
			return ""
		}
	}
	return strings.TrimSpace(out)
}

// ConfigValue returns a git config value (e.g. "user.email"), or "" if
// unset or dir is not inside a git repository.
func ConfigValue(dir, key string) string {
	out, err := run(dir, "config", key)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

// Diff returns the unified diff between base and HEAD, rooted at dir.
func Diff(ctx context.Context, dir, base string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", base+"..HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff %s..HEAD: %w", base, err)
	}
	return string(out), nil
}

// DiffNameOnly returns the list of files changed between base and HEAD.
func DiffNameOnly(ctx context.Context, dir, base string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-only", base+"..HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-only %s..HEAD: %w", base, err)
	}
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// BranchExists reports whether branch exists in the repository rooted at
// dir.
func BranchExists(dir, branch string) bool {
	_, err := run(dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
