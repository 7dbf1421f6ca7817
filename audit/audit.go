// Package audit defines the append-only invocation record and the
// sink it is written to. Records are immutable once appended; the
// correlation ID links every record of one invocation, retries
// included.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yairfalse/tagvet/faults"
)

// Status of one audited invocation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
	StatusPartial  Status = "partial"
)

// Record is one audit entry. Parameters and error text are redacted
// before the record is built; nothing in a Record is safe to skip
// redaction on, because audit logs get exported.
type Record struct {
	ID            string            `json:"id"`
	CorrelationID string            `json:"correlation_id"`
	SessionID     string            `json:"session_id"`
	Tool          string            `json:"tool"`
	Params        map[string]string `json:"params,omitempty"`
	Status        Status            `json:"status"`
	FaultKind     string            `json:"fault_kind,omitempty"`
	Error         string            `json:"error,omitempty"`
	Duration      time.Duration     `json:"duration"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Sink is the durable audit store. Append must never mutate or reorder
// previously written records.
type Sink interface {
	Append(ctx context.Context, record Record) error
	// QueryByCorrelation returns every record of one invocation in
	// append order.
	QueryByCorrelation(ctx context.Context, correlationID string) ([]Record, error)
	// QueryByTime returns records in [start, end) in append order.
	QueryByTime(ctx context.Context, start, end time.Time) ([]Record, error)
}

// NewCorrelationID mints the identifier that ties an invocation's
// records together.
func NewCorrelationID() string {
	return uuid.NewString()
}

// NewRecord builds a redacted record for one invocation outcome.
func NewRecord(correlationID, sessionID, tool string, params map[string]any, status Status, callErr error, duration time.Duration) Record {
	r := Record{
		ID:            uuid.NewString(),
		CorrelationID: correlationID,
		SessionID:     sessionID,
		Tool:          tool,
		Params:        redactParams(params),
		Status:        status,
		Duration:      duration,
		Timestamp:     time.Now().UTC(),
	}
	if callErr != nil {
		r.FaultKind = string(faults.KindOf(callErr))
		r.Error = faults.RedactError(callErr)
	}
	return r
}

// redactParams flattens a parameter bag to redacted strings. Values
// are truncated so one oversized parameter cannot bloat the log.
func redactParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return nil
	}
	const maxValueLen = 256
	out := make(map[string]string, len(params))
	for k, v := range params {
		s := faults.Redact(stringify(v))
		if len(s) > maxValueLen {
			s = s[:maxValueLen] + "..."
		}
		out[k] = s
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return formatValue(v)
	}
}
