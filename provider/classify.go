package provider

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/yairfalse/tagvet/faults"
)

// throttleCodes are the provider signals that mean "slow down and
// retry". Everything else is fatal for the attempt.
var throttleCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"SlowDown":                 true,
	// DynamoDB spells its throttle signal differently.
	"ProvisionedThroughputExceededException": true,
}

var accessCodes = map[string]bool{
	"AccessDenied":          true,
	"AccessDeniedException": true,
	"UnauthorizedOperation": true,
	"UnauthorizedAccess":    true,
	"Forbidden":             true,
}

// Classify converts a raw SDK error into the shared fault taxonomy.
// Retryability is decided here, by explicit code tables, never by
// walking the SDK's error type hierarchy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var f *faults.Fault
	if errors.As(err, &f) {
		return err // already classified
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case throttleCodes[code]:
			return faults.Wrap(faults.KindTimeout, "provider throttled", err)
		case accessCodes[code]:
			return faults.Wrap(faults.KindPermissionDenied, "provider denied access", err)
		default:
			return faults.Wrap(faults.KindUpstreamUnavailable, "provider call failed", err)
		}
	}
	return faults.Wrap(faults.KindUpstreamUnavailable, "provider unreachable", err)
}

// Retryable reports whether a classified fault should be retried with
// backoff. Only the throttle signal qualifies.
func Retryable(err error) bool {
	return faults.Is(err, faults.KindTimeout)
}
