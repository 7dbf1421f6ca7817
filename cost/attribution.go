// Package cost turns per-resource cost figures into attribution
// totals. Provenance is carried through untouched: an estimated figure
// stays estimated in every aggregate, never silently promoted to
// actual.
package cost

import (
	"sort"

	"github.com/yairfalse/tagvet/types"
)

// Attribute splits total spend into the attributable share (resources
// with zero violations) and the gap (spend on non-compliant resources
// that cannot be confidently allocated to a cost owner). The
// attributable and gap figures always sum to the total exactly because
// all three come from the same per-resource numbers.
func Attribute(resources []types.Resource, violations []types.Violation) types.CostFigures {
	violated := make(map[string]bool, len(violations))
	for _, v := range violations {
		violated[v.ResourceID] = true
	}

	figures := types.CostFigures{BySource: map[string]float64{}}
	for i := range resources {
		r := &resources[i]
		figures.TotalMonthly += r.MonthlyCost
		figures.BySource[string(r.CostSource)] += r.MonthlyCost
		if !violated[r.ID] {
			figures.AttributableMonthly += r.MonthlyCost
		}
	}
	figures.GapMonthly = figures.TotalMonthly - figures.AttributableMonthly
	if figures.TotalMonthly > 0 {
		figures.GapPercent = figures.GapMonthly / figures.TotalMonthly
	}
	return figures
}

// Grouping keys accepted by GroupBy.
const (
	GroupByType   = "resource_type"
	GroupByRegion = "region"
	GroupByTag    = "tag"
)

// Group is one bucket of a grouped attribution report.
type Group struct {
	Key           string            `json:"key"`
	ResourceCount int               `json:"resource_count"`
	Figures       types.CostFigures `json:"figures"`
}

// GroupBy buckets resources by the given key and attributes each
// bucket independently. For GroupByTag, tagName selects the tag;
// resources missing it land in the "(untagged)" bucket. Groups come
// back sorted by key so repeated runs produce identical reports.
func GroupBy(resources []types.Resource, violations []types.Violation, key, tagName string) []Group {
	buckets := make(map[string][]types.Resource)
	for i := range resources {
		r := resources[i]
		buckets[groupKey(&r, key, tagName)] = append(buckets[groupKey(&r, key, tagName)], r)
	}

	groups := make([]Group, 0, len(buckets))
	for k, members := range buckets {
		groups = append(groups, Group{
			Key:           k,
			ResourceCount: len(members),
			Figures:       Attribute(members, violations),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

func groupKey(r *types.Resource, key, tagName string) string {
	switch key {
	case GroupByRegion:
		return r.Region
	case GroupByTag:
		if v, ok := r.Tag(tagName, false); ok {
			return v
		}
		return "(untagged)"
	default:
		return r.Type
	}
}
