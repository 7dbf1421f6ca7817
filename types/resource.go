package types

import (
	"strings"
	"time"
)

// CostSource says where a resource's cost figure came from.
// Figures with different sources must never be summed as if equivalent.
type CostSource string

const (
	// CostActual is a per-resource figure from the billing API.
	CostActual CostSource = "actual"
	// CostServiceAverage is a service total divided by resource count.
	CostServiceAverage CostSource = "service_average"
	// CostEstimated is a pricing-table estimate.
	CostEstimated CostSource = "estimated"
	// CostStopped marks a stopped resource billed only for attached storage.
	CostStopped CostSource = "stopped"
)

// Resource is a read-only snapshot of a cloud resource (EC2 instance,
// S3 bucket, RDS database, etc) as observed during one invocation.
type Resource struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Region      string            `json:"region"`
	AccountID   string            `json:"account_id"`
	Name        string            `json:"name,omitempty"`
	Tags        map[string]string `json:"tags"`
	CreatedAt   time.Time         `json:"created_at"`
	MonthlyCost float64           `json:"monthly_cost"`
	CostSource  CostSource        `json:"cost_source"`
}

// Tag looks up a tag value by key, honoring case-insensitive keys.
func (r *Resource) Tag(key string, caseSensitive bool) (string, bool) {
	if r.Tags == nil {
		return "", false
	}
	if caseSensitive {
		v, ok := r.Tags[key]
		return v, ok
	}
	for k, v := range r.Tags {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// BuildResourceMap indexes resources for lookup by identifier. Both
// the full ID and its trailing path element are keys, so "i-0abc" and
// the full instance ARN resolve to the same resource.
func BuildResourceMap(resources []Resource) map[string]Resource {
	resourceMap := make(map[string]Resource, 2*len(resources))
	for _, resource := range resources {
		resourceMap[resource.ID] = resource
		if i := strings.LastIndexAny(resource.ID, "/:"); i >= 0 {
			resourceMap[resource.ID[i+1:]] = resource
		}
	}
	return resourceMap
}
