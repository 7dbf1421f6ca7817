package session

import (
	"context"
	"time"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/telemetry"
)

// Budget defaults.
const (
	DefaultBudgetCeiling = 100
	DefaultBudgetTTL     = time.Hour
)

// BudgetTracker enforces a per-session call ceiling within a TTL
// window.
type BudgetTracker struct {
	store   CounterStore
	ceiling int64
	ttl     time.Duration
	logger  *telemetry.Logger
}

// NewBudgetTracker creates a tracker. Zero ceiling/ttl take defaults.
func NewBudgetTracker(store CounterStore, ceiling int64, ttl time.Duration) *BudgetTracker {
	if ceiling <= 0 {
		ceiling = DefaultBudgetCeiling
	}
	if ttl <= 0 {
		ttl = DefaultBudgetTTL
	}
	return &BudgetTracker{
		store:   store,
		ceiling: ceiling,
		ttl:     ttl,
		logger:  telemetry.NewLogger("budget-tracker"),
	}
}

// Charge spends one call from the session's budget. The increment is
// not rolled back on rejection: under races the counter may exceed the
// ceiling slightly. Rejection is the safety property, not perfect
// accounting.
func (b *BudgetTracker) Charge(ctx context.Context, sessionID string) error {
	value, err := b.store.AtomicIncrement(ctx, "budget:"+sessionID, b.ttl)
	if err != nil {
		return faults.Wrap(faults.KindInternal, "budget counter unavailable", err)
	}
	if value > b.ceiling {
		telemetry.BudgetRejections.Add(ctx, 1)
		b.logger.WithContext(ctx).Warn().
			Str("session_id", sessionID).
			Int64("count", value).
			Int64("ceiling", b.ceiling).
			Msg("session budget exhausted")
		return faults.Newf(faults.KindBudgetExhausted,
			"session %s used %d of %d calls", sessionID, value, b.ceiling)
	}
	return nil
}
