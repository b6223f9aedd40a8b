// Package atomicio implements the on-disk write primitive every store in
// flowctl uses: write to a temp file in the target directory, then rename
// into place, so a concurrent reader always observes either the old
// content or the new content in full, never a partial write.
package atomicio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path with content.
func WriteFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// WriteText atomically writes a text file, as-is (no trailing-newline
// normalization — markdown content keeps whatever line endings it came
// with).
func WriteText(path, content string) error {
	return WriteFile(path, []byte(content))
}

// WriteJSON atomically writes v as stable, key-sorted, two-space indented
// JSON terminated with a newline.
//
// v is marshaled once, then round-tripped through an untyped value so
// that map/object key ordering is alphabetical regardless of the struct
// field order used to define v.
func WriteJSON(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("normalizing %s: %w", path, err)
	}
	sorted, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	sorted = append(sorted, '\n')
	return WriteFile(path, sorted)
}

// ReadJSON reads and decodes path into v.
func ReadJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ReadText reads path as a UTF-8 string.
func ReadText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
