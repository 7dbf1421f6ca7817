package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/telemetry"
)

// Loop-detection defaults.
const (
	DefaultLoopWindow    = 5 * time.Minute
	DefaultLoopThreshold = 3
)

// LoopDetector flags repeated identical invocations within a sliding
// window. The first and second occurrence pass; the third fails.
type LoopDetector struct {
	store     CounterStore
	window    time.Duration
	threshold int
	logger    *telemetry.Logger
}

// NewLoopDetector creates a detector. Zero window/threshold take
// defaults.
func NewLoopDetector(store CounterStore, window time.Duration, threshold int) *LoopDetector {
	if window <= 0 {
		window = DefaultLoopWindow
	}
	if threshold <= 0 {
		threshold = DefaultLoopThreshold
	}
	return &LoopDetector{
		store:     store,
		window:    window,
		threshold: threshold,
		logger:    telemetry.NewLogger("loop-detector"),
	}
}

// Check records this invocation's signature and rejects the call when
// it is the threshold-th identical one inside the window.
func (d *LoopDetector) Check(ctx context.Context, sessionID, toolName string, params map[string]any) error {
	signature := Signature(toolName, params)

	count, err := d.store.RecordSeen(ctx, "loop:"+sessionID, signature, d.window)
	if err != nil {
		return faults.Wrap(faults.KindInternal, "loop signature store unavailable", err)
	}
	if count >= d.threshold {
		telemetry.LoopRejections.Add(ctx, 1)
		d.logger.WithContext(ctx).Warn().
			Str("session_id", sessionID).
			Str("tool", toolName).
			Int("occurrences", count).
			Msg("repeated identical call detected")
		return faults.Newf(faults.KindLoopDetected,
			"call %s repeated %d times within %s", toolName, count, d.window)
	}
	return nil
}

// Signature hashes the tool name plus a canonical serialization of the
// parameters. Canonical means key-sorted at every level, so two bags
// with the same content always produce the same signature.
func Signature(toolName string, params map[string]any) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(canonicalJSON(params))
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalJSON serializes with sorted keys at every nesting level.
func canonicalJSON(v any) []byte {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := []byte{'{'}
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			out = append(out, canonicalJSON(t[k])...)
		}
		return append(out, '}')
	case []any:
		out := []byte{'['}
		for i, e := range t {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, canonicalJSON(e)...)
		}
		return append(out, ']')
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", v)))
		}
		return b
	}
}
