package faults

import (
	"context"
	"errors"
)

// safeMessages maps each kind to its fixed caller-facing message.
// No exception internals ever reach these strings.
var safeMessages = map[Kind]string{
	KindInvalidInput:        "Invalid input. Check parameter names, types, and allowed values.",
	KindSecurityViolation:   "Request blocked by input safety checks.",
	KindPermissionDenied:    "Access denied. The audit role lacks permission for this operation.",
	KindTimeout:             "The operation timed out. Retry with a narrower scope (fewer regions or resource types).",
	KindBudgetExhausted:     "Session call budget exhausted. Start a new session or wait for the budget window to reset.",
	KindLoopDetected:        "Repeated identical call detected. Change the parameters before retrying.",
	KindUpstreamUnavailable: "The cloud provider API is currently unavailable. Try again later.",
	KindInternal:            "An internal error occurred. Give the correlation ID to an operator.",
}

// Sanitized is the only failure shape callers ever see.
type Sanitized struct {
	Kind          Kind   `json:"kind"`
	Category      string `json:"category,omitempty"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

// Sanitize converts any error into its external representation. The
// full original text belongs in the audit sink, after Redact, never in
// the return value here.
func Sanitize(err error, correlationID string) Sanitized {
	kind := KindOf(err)
	msg, ok := safeMessages[kind]
	if !ok {
		kind = KindInternal
		msg = safeMessages[KindInternal]
	}
	return Sanitized{
		Kind:          kind,
		Category:      CategoryOf(err),
		Message:       msg,
		CorrelationID: correlationID,
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
