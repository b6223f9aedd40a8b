// Package domain holds the core entities flowctl tracks: epics, tasks,
// their identifiers, runtime state, review receipts, and checkpoints.
package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	epicIDRegex = regexp.MustCompile(`^fn-(\d+)(?:-([a-z0-9](?:-?[a-z0-9])*))?$`)
	taskIDRegex = regexp.MustCompile(`^fn-(\d+)(?:-([a-z0-9](?:-?[a-z0-9])*))?\.(\d+)$`)

	slugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	wordRunRegex = regexp.MustCompile(`[^a-z0-9]+`)
)

// EpicID identifies an epic: fn-N or fn-N-slug.
type EpicID struct {
	Num  int
	Slug string
}

// TaskID identifies a task within an epic: <EpicID>.M.
type TaskID struct {
	Epic EpicID
	Num  int
}

// String renders the canonical epic id.
func (e EpicID) String() string {
	if e.Slug == "" {
		return fmt.Sprintf("fn-%d", e.Num)
	}
	return fmt.Sprintf("fn-%d-%s", e.Num, e.Slug)
}

// String renders the canonical task id.
func (t TaskID) String() string {
	return fmt.Sprintf("%s.%d", t.Epic.String(), t.Num)
}

// IsZero reports whether the id is the unset zero value.
func (e EpicID) IsZero() bool { return e.Num == 0 && e.Slug == "" }

// IsZero reports whether the id is the unset zero value.
func (t TaskID) IsZero() bool { return t.Epic.IsZero() && t.Num == 0 }

// MarshalJSON renders the epic id as its canonical string.
func (e EpicID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON parses the epic id from its canonical string.
func (e *EpicID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*e = EpicID{}
		return nil
	}
	parsed, err := ParseEpicID(s)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalJSON renders the task id as its canonical string.
func (t TaskID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the task id from its canonical string.
func (t *TaskID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = TaskID{}
		return nil
	}
	parsed, err := ParseTaskID(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEpicID parses a string like "fn-1" or "fn-1-add-auth" into an EpicID.
func ParseEpicID(s string) (EpicID, error) {
	m := epicIDRegex.FindStringSubmatch(s)
	if m == nil {
		return EpicID{}, fmt.Errorf("invalid epic id %q: expected fn-N[-slug]", s)
	}
	num, err := strconv.Atoi(m[1])
	if err != nil {
		return EpicID{}, fmt.Errorf("invalid epic id %q: %w", s, err)
	}
	return EpicID{Num: num, Slug: m[2]}, nil
}

// ParseTaskID parses a string like "fn-1.2" or "fn-1-add-auth.2" into a TaskID.
func ParseTaskID(s string) (TaskID, error) {
	m := taskIDRegex.FindStringSubmatch(s)
	if m == nil {
		return TaskID{}, fmt.Errorf("invalid task id %q: expected <epic-id>.N", s)
	}
	epicNum, err := strconv.Atoi(m[1])
	if err != nil {
		return TaskID{}, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	taskNum, err := strconv.Atoi(m[3])
	if err != nil {
		return TaskID{}, fmt.Errorf("invalid task id %q: %w", s, err)
	}
	return TaskID{Epic: EpicID{Num: epicNum, Slug: m[2]}, Num: taskNum}, nil
}

// EpicOf returns the epic id prefix of a task id string, without needing a
// full parse of the task number (preserves whatever slug the caller wrote).
func EpicOf(taskID string) (string, bool) {
	idx := strings.LastIndex(taskID, ".")
	if idx <= 0 {
		return "", false
	}
	return taskID[:idx], true
}

// IsEpicID reports whether s parses as an epic id.
func IsEpicID(s string) bool {
	_, err := ParseEpicID(s)
	return err == nil
}

// IsTaskID reports whether s parses as a task id.
func IsTaskID(s string) bool {
	_, err := ParseTaskID(s)
	return err == nil
}

// Less orders task ids lexicographically over (epic_num, task_num).
func (t TaskID) Less(o TaskID) bool {
	if t.Epic.Num != o.Epic.Num {
		return t.Epic.Num < o.Epic.Num
	}
	return t.Num < o.Num
}

// Less orders epic ids by numeric component.
func (e EpicID) Less(o EpicID) bool {
	return e.Num < o.Num
}

// DeriveSlug folds title into a URL/filesystem-safe slug per spec: Unicode
// NFKD to ASCII, lowercase, collapse non-word runs to '-', truncate at a
// word boundary to <= 40 chars. Falls back to a random 3-char suffix if the
// result is empty.
func DeriveSlug(title string) string {
	ascii := foldToASCII(title)
	lower := strings.ToLower(ascii)
	collapsed := wordRunRegex.ReplaceAllString(lower, "-")
	collapsed = strings.Trim(collapsed, "-")

	if collapsed == "" {
		return randomSlugSuffix()
	}

	if len(collapsed) > 40 {
		collapsed = truncateAtWordBoundary(collapsed, 40)
	}
	collapsed = strings.Trim(collapsed, "-")
	if collapsed == "" {
		return randomSlugSuffix()
	}
	return collapsed
}

func foldToASCII(s string) string {
	t := transform.Chain(norm.NFKD, transform.RemoveFunc(func(r rune) bool {
		return r > 0x7F
	}))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func truncateAtWordBoundary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndex(cut, "-"); idx > 0 {
		return cut[:idx]
	}
	return cut
}

// randomSlugSuffix returns a cryptographically random 3-character [a-z0-9]
// string, grounded on the alphabet-indexed crypto/rand pattern used for
// short id suffixes elsewhere in the corpus.
func randomSlugSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken;
		// fall back to a fixed suffix rather than panic.
		return "xyz"
	}
	out := make([]byte, 3)
	for i := range b {
		out[i] = slugAlphabet[int(b[i])%len(slugAlphabet)]
	}
	return string(out)
}
