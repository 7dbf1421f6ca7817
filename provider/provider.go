// Package provider defines the Resource Provider boundary: the
// collaborator that performs the actual cloud API calls. The control
// plane only ever sees the classified fault kinds defined here, never
// raw SDK errors.
package provider

import (
	"context"
	"time"

	"github.com/yairfalse/tagvet/types"
)

// ResourceProvider lists resources for one (type, region) partition.
type ResourceProvider interface {
	// ListResources returns all resources of one type in one region,
	// following pagination internally. Failures are classified:
	// Throttled is retryable, PermissionDenied and Unavailable are not
	// (see Classify).
	ListResources(ctx context.Context, resourceType, region string) ([]types.Resource, error)

	// SupportedTypes returns the resource types this provider can
	// scan, in a stable order.
	SupportedTypes() []string

	// AccountID identifies the account being audited.
	AccountID() string
}

// CostProvider returns cost records for a resource type over a range.
type CostProvider interface {
	GetCostData(ctx context.Context, resourceType string, timeRange TimeRange) ([]CostRecord, error)
}

// TimeRange bounds a cost query.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// CostRecord is one cost figure with explicit provenance. Per-resource
// figures carry CostActual; service totals carry CostServiceAverage
// and a ResourceCount to divide by.
type CostRecord struct {
	ResourceID    string           `json:"resource_id,omitempty"`
	Service       string           `json:"service"`
	MonthlyCost   float64          `json:"monthly_cost"`
	Source        types.CostSource `json:"source"`
	ResourceCount int              `json:"resource_count,omitempty"`
}

// PolicySource loads the tag policy document.
type PolicySource interface {
	LoadPolicy(ctx context.Context) ([]byte, error)
}
