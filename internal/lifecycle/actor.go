// Package lifecycle implements the task and epic status machines: start,
// done, block, reset, epic close, epic rename, and dependency edge edits.
package lifecycle

import "os"

// CurrentActor resolves the identity used for soft-claim semantics, in
// order: FLOW_ACTOR, git user.email, git user.name, USER, "unknown".
func CurrentActor(gitEmail, gitName string) string {
	if actor := os.Getenv("FLOW_ACTOR"); actor != "" {
		return actor
	}
	if gitEmail != "" {
		return gitEmail
	}
	if gitName != "" {
		return gitName
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}
