package review

import (
	"regexp"

	"github.com/hochfrequenz/flowctl/internal/domain"
)

var verdictPattern = regexp.MustCompile(`(?is)<verdict>\s*(SHIP|NEEDS_WORK|MAJOR_RETHINK)\s*</verdict>`)

// ExtractVerdict finds the verdict tag in the reviewer's output. When the
// tag appears more than once (a reviewer correcting itself mid-response),
// the final occurrence wins. A transcript with no verdict tag at all is a
// malformed-output condition, not a NEEDS_WORK verdict — callers must not
// default silently.
func ExtractVerdict(transcript string) (domain.ReviewVerdict, bool) {
	matches := verdictPattern.FindAllStringSubmatch(transcript, -1)
	if len(matches) == 0 {
		return "", false
	}
	last := matches[len(matches)-1]
	return domain.ReviewVerdict(normalizeVerdict(last[1])), true
}

func normalizeVerdict(s string) string {
	switch s {
	case "SHIP", "ship":
		return string(domain.VerdictShip)
	case "NEEDS_WORK", "needs_work":
		return string(domain.VerdictNeedsWork)
	case "MAJOR_RETHINK", "major_rethink":
		return string(domain.VerdictMajorRethink)
	default:
		return s
	}
}

// sandboxFailurePatterns are case-insensitive signatures of a
// reviewer subprocess that never actually attempted the review because its
// sandbox refused the operation — as opposed to a review that ran and
// produced a legitimate NEEDS_WORK verdict. The patterns are not anchored
// and are matched anywhere in the whole transcript, not only in error
// output. Matching one of these means the receipt must not be written; the
// caller should surface a sandbox error instead.
var sandboxFailurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)blocked by policy`),
	regexp.MustCompile(`(?i)rejected by policy`),
	regexp.MustCompile(`(?i)filesystem (read|write) is blocked`),
	regexp.MustCompile(`(?i)operation not permitted.*sandbox`),
	regexp.MustCompile(`(?i)AppContainer`),
	regexp.MustCompile(`(?i)sandbox.{0,20}denied`),
	regexp.MustCompile(`(?i)seccomp`),
}

// IsSandboxFailure reports whether transcript looks like a sandbox-denial
// rather than a completed review.
func IsSandboxFailure(transcript string) bool {
	for _, p := range sandboxFailurePatterns {
		if p.MatchString(transcript) {
			return true
		}
	}
	return false
}
