package audit

import (
	"context"
	"sync"
	"time"
)

// MemorySink keeps records in process memory. It backs tests and the
// degraded mode entered when the durable store cannot be opened;
// records are lost on restart, which is logged loudly at startup.
type MemorySink struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemorySink creates an empty in-process sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink.
func (s *MemorySink) Append(ctx context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// QueryByCorrelation implements Sink.
func (s *MemorySink) QueryByCorrelation(ctx context.Context, correlationID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if r.CorrelationID == correlationID {
			out = append(out, r)
		}
	}
	return out, nil
}

// QueryByTime implements Sink.
func (s *MemorySink) QueryByTime(ctx context.Context, start, end time.Time) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}
