// Package faults defines the shared failure taxonomy for tagvet. Every
// component fails with one of these kinds; the sanitizer maps kinds to
// fixed caller-facing messages so internals never leak.
package faults

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindSecurityViolation   Kind = "security_violation"
	KindPermissionDenied    Kind = "permission_denied"
	KindTimeout             Kind = "timeout"
	KindBudgetExhausted     Kind = "budget_exhausted"
	KindLoopDetected        Kind = "loop_detected"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal            Kind = "internal"
)

// Fault is a typed failure. Category further qualifies security
// violations (e.g. "path_traversal"); empty otherwise.
type Fault struct {
	Kind     Kind
	Category string
	// Detail is internal-only text. It reaches the audit sink after
	// redaction and never reaches the caller.
	Detail string
	Err    error
}

func (f *Fault) Error() string {
	switch {
	case f.Err != nil && f.Detail != "":
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Detail, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	case f.Detail != "":
		return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
	default:
		return string(f.Kind)
	}
}

func (f *Fault) Unwrap() error { return f.Err }

// New creates a fault of the given kind.
func New(kind Kind, detail string) *Fault {
	return &Fault{Kind: kind, Detail: detail}
}

// Newf creates a fault with a formatted internal detail.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, detail string, err error) *Fault {
	return &Fault{Kind: kind, Detail: detail, Err: err}
}

// Security creates a security violation tagged with the detected
// pattern category.
func Security(category, detail string) *Fault {
	return &Fault{Kind: KindSecurityViolation, Category: category, Detail: detail}
}

// KindOf classifies any error. Unrecognized errors collapse to
// KindInternal; context deadline errors map to KindTimeout.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if isDeadline(err) {
		return KindTimeout
	}
	return KindInternal
}

// CategoryOf returns the security category of err, if any.
func CategoryOf(err error) string {
	var f *Fault
	if errors.As(err, &f) {
		return f.Category
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
