package review

import "github.com/google/uuid"

// reviewerNamespace seeds deterministic per-task/per-epic reviewer session
// ids, so a re-review after an iterative fix resumes the same reviewer
// session instead of starting cold every time.
var reviewerNamespace = uuid.MustParse("d6e4f9b0-7c1a-4f3e-9a2d-5b6c8e1f0a3d")

// SessionID derives a deterministic session id for ownerID (a task or epic
// id) and review type, so Resume can be computed without persisting a
// separate session-id file.
func SessionID(ownerID string, t string) string {
	return uuid.NewSHA1(reviewerNamespace, []byte(t+":"+ownerID)).String()
}
