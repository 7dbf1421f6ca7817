package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/provider"

	"github.com/aws/smithy-go"
)

func throttleErr() error {
	return provider.Classify(&smithy.GenericAPIError{Code: "Throttling"})
}

func TestDoRetriesOnThrottleOnly(t *testing.T) {
	l := New(Options{MinInterval: time.Millisecond, BackoffBase: time.Millisecond})

	var calls int
	err := l.Do(context.Background(), "ec2", func(context.Context) error {
		calls++
		if calls < 3 {
			return throttleErr()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	l := New(Options{MinInterval: time.Millisecond, BackoffBase: time.Millisecond, MaxAttempts: 5})

	var calls int
	err := l.Do(context.Background(), "ec2", func(context.Context) error {
		calls++
		return throttleErr()
	})
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
	if faults.KindOf(err) != faults.KindTimeout {
		t.Errorf("final error = %v", err)
	}
}

func TestDoNeverRetriesPermissionDenied(t *testing.T) {
	l := New(Options{MinInterval: time.Millisecond, BackoffBase: time.Millisecond})

	var calls int
	err := l.Do(context.Background(), "ec2", func(context.Context) error {
		calls++
		return provider.Classify(&smithy.GenericAPIError{Code: "AccessDenied"})
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if faults.KindOf(err) != faults.KindPermissionDenied {
		t.Errorf("error = %v", err)
	}
}

func TestDoNeverRetriesPlainErrors(t *testing.T) {
	l := New(Options{MinInterval: time.Millisecond, BackoffBase: time.Millisecond})

	var calls int
	_ = l.Do(context.Background(), "ec2", func(context.Context) error {
		calls++
		return errors.New("validation failed")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestMinIntervalPacesSameKey(t *testing.T) {
	interval := 20 * time.Millisecond
	l := New(Options{MinInterval: interval})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), "ec2", func(context.Context) error { return nil }); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("3 paced calls took %v, want >= %v", elapsed, 2*interval)
	}
}

func TestDifferentKeysProceedIndependently(t *testing.T) {
	interval := 50 * time.Millisecond
	l := New(Options{MinInterval: interval})

	// Prime both keys so the next call on each would have to wait.
	_ = l.Do(context.Background(), "ec2", func(context.Context) error { return nil })

	start := time.Now()
	_ = l.Do(context.Background(), "rds", func(context.Context) error { return nil })
	if elapsed := time.Since(start); elapsed >= interval {
		t.Errorf("different key waited %v for ec2's slot", elapsed)
	}
}

func TestConcurrencyGateCapsInFlight(t *testing.T) {
	l := New(Options{MinInterval: time.Nanosecond, MaxInFlight: 2})

	var inFlight, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n)) // distinct keys: only the gate limits
			_ = l.Do(context.Background(), key, func(context.Context) error {
				cur := inFlight.Add(1)
				for {
					p := peak.Load()
					if cur <= p || peak.CompareAndSwap(p, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak in-flight = %d, want <= 2", got)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	l := New(Options{MinInterval: time.Hour})
	_ = l.Do(context.Background(), "slow", func(context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, "slow", func(context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}
