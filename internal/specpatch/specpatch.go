// Package specpatch implements heading-scoped editing of task and epic
// spec markdown: replace the body under a second-level heading without
// touching the rest of the file, and validate that the required headings
// for a task spec are each present exactly once.
package specpatch

import (
	"fmt"
	"regexp"
	"strings"
)

// RequiredTaskHeadings are the second-level headings every task spec
// must contain, in any order, exactly once, line-anchored.
var RequiredTaskHeadings = []string{"## Description", "## Acceptance", "## Done summary", "## Evidence"}

// DuplicateHeadingError reports a heading occurring more than once.
type DuplicateHeadingError struct {
	Heading string
	Count   int
}

func (e *DuplicateHeadingError) Error() string {
	return fmt.Sprintf("duplicate heading %q found %d times", e.Heading, e.Count)
}

// MissingHeadingError reports a heading that should exist but doesn't.
type MissingHeadingError struct {
	Heading string
}

func (e *MissingHeadingError) Error() string {
	return fmt.Sprintf("heading %q not found", e.Heading)
}

func headingPattern(heading string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(heading) + `\s*$`)
}

// PatchSection replaces the body of heading with newBody, leaving every
// other line untouched. It fails if heading occurs more than once, or not
// at all. If newBody itself starts with the heading line, that line is
// stripped first (tolerant of callers that pass a full section).
func PatchSection(content, heading, newBody string) (string, error) {
	pattern := headingPattern(heading)
	matches := pattern.FindAllStringIndex(content, -1)
	if len(matches) > 1 {
		return "", &DuplicateHeadingError{Heading: heading, Count: len(matches)}
	}
	if len(matches) == 0 {
		return "", &MissingHeadingError{Heading: heading}
	}

	newBody = stripLeadingHeadingLine(newBody, heading)
	newBody = strings.TrimRight(newBody, " \t\r\n")

	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines)+1)
	inTarget := false
	found := false

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			if strings.TrimSpace(line) == heading {
				inTarget = true
				found = true
				result = append(result, line)
				result = append(result, newBody)
				continue
			}
			inTarget = false
		}
		if !inTarget {
			result = append(result, line)
		}
	}
	if !found {
		return "", &MissingHeadingError{Heading: heading}
	}
	return strings.Join(result, "\n"), nil
}

func stripLeadingHeadingLine(body, heading string) string {
	trimmed := strings.TrimLeft(body, "\n")
	firstLine, rest, hasRest := strings.Cut(trimmed, "\n")
	if strings.TrimSpace(firstLine) == heading {
		if hasRest {
			return strings.TrimLeft(rest, "\n")
		}
		return ""
	}
	return body
}

// GetSection returns the trimmed text between heading and the next "## "
// heading (or EOF).
func GetSection(content, heading string) (string, error) {
	pattern := headingPattern(heading)
	loc := pattern.FindStringIndex(content)
	if loc == nil {
		return "", &MissingHeadingError{Heading: heading}
	}
	rest := content[loc[1]:]
	nextHeading := regexp.MustCompile(`(?m)^## `).FindStringIndex(rest)
	var body string
	if nextHeading == nil {
		body = rest
	} else {
		body = rest[:nextHeading[0]]
	}
	return strings.TrimSpace(body), nil
}

// ValidateTaskSpecHeadings reports one error message per required heading
// that is missing or duplicated. A nil/empty return means content is
// structurally valid.
func ValidateTaskSpecHeadings(content string) []string {
	var errs []string
	for _, heading := range RequiredTaskHeadings {
		count := len(headingPattern(heading).FindAllStringIndex(content, -1))
		switch {
		case count == 0:
			errs = append(errs, fmt.Sprintf("missing required heading: %s", heading))
		case count > 1:
			errs = append(errs, fmt.Sprintf("duplicate heading: %s (found %d times)", heading, count))
		}
	}
	return errs
}

// emptyEvidenceTemplate is the body clear_evidence resets "## Evidence" to.
const emptyEvidenceTemplate = "- Commits:\n- Tests:\n- PRs:"

// ClearEvidence resets the body of "## Evidence" to the three-line empty
// template, preserving the heading and all other sections.
func ClearEvidence(content string) (string, error) {
	return PatchSection(content, "## Evidence", emptyEvidenceTemplate)
}

// doneSummaryTemplate is the body clear_done_summary resets "## Done
// summary" to.
const doneSummaryTemplate = "TBD"

// ClearDoneSummary resets the body of "## Done summary" to the blank
// template, preserving the heading and all other sections.
func ClearDoneSummary(content string) (string, error) {
	return PatchSection(content, "## Done summary", doneSummaryTemplate)
}

// RenderEvidence renders an evidence object to the three markdown bullet
// lines "## Evidence" expects.
func RenderEvidence(commits, tests, prs []string) string {
	return fmt.Sprintf("%s\n%s\n%s",
		renderEvidenceLine("Commits", commits), renderEvidenceLine("Tests", tests), renderEvidenceLine("PRs", prs))
}

// renderEvidenceLine renders a single evidence bullet, omitting the space
// after the colon when values is empty.
func renderEvidenceLine(label string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("- %s:", label)
	}
	return fmt.Sprintf("- %s: %s", label, strings.Join(values, ", "))
}
