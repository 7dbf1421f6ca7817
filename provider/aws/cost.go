package aws

import (
	"context"
	"sync"

	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/types"
)

// costTracker accumulates per-service resource counts from scans so
// GetCostData can serve service-average figures without a billing API.
// Records are always marked service_average or estimated; never
// presented as actuals.
type costTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

func (p *Provider) trackCounts(resourceType string, n int) {
	p.costs.mu.Lock()
	defer p.costs.mu.Unlock()
	if p.costs.counts == nil {
		p.costs.counts = make(map[string]int)
	}
	p.costs.counts[resourceType] += n
}

// GetCostData returns the service-level cost record for one resource
// type over the given range. The figure is the per-type estimate times
// the observed resource count, tagged service_average with the count
// so callers can divide without conflating it with per-resource
// actuals.
func (p *Provider) GetCostData(ctx context.Context, resourceType string, timeRange provider.TimeRange) ([]provider.CostRecord, error) {
	p.costs.mu.Lock()
	count := p.costs.counts[resourceType]
	p.costs.mu.Unlock()

	if count == 0 {
		return nil, nil
	}
	return []provider.CostRecord{{
		Service:       resourceType,
		MonthlyCost:   monthlyEstimates[resourceType] * float64(count),
		Source:        types.CostServiceAverage,
		ResourceCount: count,
	}}, nil
}
