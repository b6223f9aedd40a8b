package review

import (
	"os"
	"path/filepath"
	"strings"
)

// CollectEmbeddedFiles reads the changed files named in paths (relative to
// repoRoot) and embeds their content up to maxBytes total, in order, until
// the budget is exhausted. Each file is independently capped at
// perFileCapBytes so one large file cannot starve every other file's
// embedding.
func CollectEmbeddedFiles(repoRoot string, paths []string, maxBytes, perFileCapBytes int) []EmbeddedFile {
	var out []EmbeddedFile
	budget := maxBytes
	for _, rel := range paths {
		if budget <= 0 {
			out = append(out, EmbeddedFile{Path: rel, SkipReason: "budget exhausted"})
			continue
		}

		abs := filepath.Join(repoRoot, rel)
		if !withinRoot(repoRoot, abs) {
			out = append(out, EmbeddedFile{Path: rel, SkipReason: "outside repo root"})
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			out = append(out, EmbeddedFile{Path: rel, SkipReason: "deleted"})
			continue
		}
		if info.IsDir() {
			continue
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			out = append(out, EmbeddedFile{Path: rel, SkipReason: "unreadable"})
			continue
		}
		if looksBinary(data) {
			out = append(out, EmbeddedFile{Path: rel, SkipReason: "binary"})
			continue
		}

		cap := perFileCapBytes
		if cap <= 0 || cap > budget {
			cap = budget
		}

		content := string(data)
		truncated := false
		if len(content) > cap {
			content = content[:cap]
			truncated = true
		}
		budget -= len(content)

		out = append(out, EmbeddedFile{Path: rel, Content: content, Truncated: truncated})
	}
	return out
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return !strings.HasPrefix(rel, "..")
}

// looksBinary applies the common heuristic: a NUL byte anywhere in the
// first chunk means treat the file as binary.
func looksBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
