// Package ratelimit wraps outbound calls to the Resource Provider:
// per-service pacing, bounded fan-out, and retry with exponential
// backoff on throttle signals only.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/telemetry"
)

// Options tune the limiter. Zero values take defaults.
type Options struct {
	// MinInterval is the minimum gap between calls sharing a service
	// key. Default 100ms.
	MinInterval time.Duration
	// MaxInFlight caps concurrent provider calls process-wide.
	// Default 5. Calls beyond the cap queue rather than spawn.
	MaxInFlight int
	// MaxAttempts bounds retries on throttle signals. Default 5.
	MaxAttempts int
	// BackoffBase is the first retry delay; doubles per attempt.
	// Default 200ms.
	BackoffBase time.Duration
	// Jitter adds up to 25% random slack to each backoff delay.
	Jitter bool
}

func (o Options) withDefaults() Options {
	if o.MinInterval <= 0 {
		o.MinInterval = 100 * time.Millisecond
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = 5
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 200 * time.Millisecond
	}
	return o
}

// Limiter serializes calls per service key and gates total fan-out.
// Per-service slots are process-wide shared state; exceeding them only
// costs latency, so no cross-process coordination is needed.
type Limiter struct {
	opts   Options
	gate   chan struct{}
	logger *telemetry.Logger

	mu    sync.Mutex
	locks map[string]*serviceSlot
}

// serviceSlot enforces the min inter-call interval for one key.
type serviceSlot struct {
	mu       sync.Mutex
	lastCall time.Time
}

// New creates a limiter.
func New(opts Options) *Limiter {
	opts = opts.withDefaults()
	return &Limiter{
		opts:   opts,
		gate:   make(chan struct{}, opts.MaxInFlight),
		logger: telemetry.NewLogger("rate-limiter"),
		locks:  make(map[string]*serviceSlot),
	}
}

// Do runs fn under the concurrency gate and the per-service pacer,
// retrying with exponential backoff while fn fails with a throttle
// signal. Permission and validation failures propagate immediately.
func (l *Limiter) Do(ctx context.Context, serviceKey string, fn func(context.Context) error) error {
	select {
	case l.gate <- struct{}{}:
		defer func() { <-l.gate }()
	case <-ctx.Done():
		return ctx.Err()
	}

	var err error
	for attempt := 0; attempt < l.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			telemetry.ProviderRetries.Add(ctx, 1)
			if waitErr := sleepCtx(ctx, l.backoff(attempt)); waitErr != nil {
				return waitErr
			}
		}
		if err = l.waitTurn(ctx, serviceKey); err != nil {
			return err
		}

		err = fn(ctx)
		if err == nil || !provider.Retryable(err) {
			return err
		}
		l.logger.WithContext(ctx).Debug().
			Str("service", serviceKey).
			Int("attempt", attempt+1).
			Msg("throttled, backing off")
	}
	return err
}

// waitTurn blocks until the service key's min interval has elapsed.
// Calls to different keys proceed independently.
func (l *Limiter) waitTurn(ctx context.Context, serviceKey string) error {
	slot := l.slot(serviceKey)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	wait := l.opts.MinInterval - time.Since(slot.lastCall)
	if wait > 0 {
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	slot.lastCall = time.Now()
	return nil
}

func (l *Limiter) slot(serviceKey string) *serviceSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.locks[serviceKey]
	if !ok {
		s = &serviceSlot{}
		l.locks[serviceKey] = s
	}
	return s
}

// backoff is base * 2^(attempt-1), with optional jitter.
func (l *Limiter) backoff(attempt int) time.Duration {
	d := l.opts.BackoffBase << (attempt - 1)
	if l.opts.Jitter {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1)) // #nosec G404 -- jitter, not crypto
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
