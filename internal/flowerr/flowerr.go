// Package flowerr defines the error taxonomy flowctl commands classify
// failures into, and the exit-code mapping the CLI layer applies to them.
package flowerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the CLI layer can choose an exit code and
// reviewer-facing callers can decide whether a retry makes sense.
type Kind int

const (
	// KindNone is the zero value; never attached to a returned error.
	KindNone Kind = iota
	// KindNotFound: a referenced epic/task/spec/state file is missing.
	KindNotFound
	// KindMalformed: parse error, unsupported schema version, invalid id
	// grammar, missing or duplicate required heading.
	KindMalformed
	// KindPrecondition: status machine violation.
	KindPrecondition
	// KindConcurrency: lock acquisition failed, or takeover refused.
	KindConcurrency
	// KindExternalTool: reviewer/VCS binary missing or failed.
	KindExternalTool
	// KindSandbox: reviewer blocked by the platform sandbox.
	KindSandbox
	// KindTimeout: wall-clock deadline exceeded.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMalformed:
		return "malformed"
	case KindPrecondition:
		return "precondition"
	case KindConcurrency:
		return "concurrency"
	case KindExternalTool:
		return "external_tool"
	case KindSandbox:
		return "sandbox"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ExitCode maps a Kind onto the process exit code: 1 for domain errors, 2
// for tool-integration failures, 3 for sandbox or timeout failures.
func (k Kind) ExitCode() int {
	switch k {
	case KindNotFound, KindMalformed, KindPrecondition, KindConcurrency:
		return 1
	case KindExternalTool:
		return 2
	case KindSandbox, KindTimeout:
		return 3
	default:
		return 1
	}
}

// Error wraps an underlying cause with a Kind.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// New builds a Kind-tagged error from a message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, msg: msg}
}

// Newf builds a Kind-tagged error from a format string.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, msg: msg, err: err}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Errors not
// produced by this package report KindNone.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNone
}

// ExitCodeFor returns the exit code for err, or 0 for a nil error.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	kind := KindOf(err)
	if kind == KindNone {
		return 1
	}
	return kind.ExitCode()
}
