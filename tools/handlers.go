package tools

import (
	"context"
	"time"

	"github.com/yairfalse/tagvet/cost"
	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/policy"
	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/types"
	"github.com/yairfalse/tagvet/validate"
)

// SummaryPayload is the condensed compliance report.
type SummaryPayload struct {
	PolicyVersion    string            `json:"policy_version"`
	TotalResources   int               `json:"total_resources"`
	CompliantCount   int               `json:"compliant_count"`
	ComplianceScore  float64           `json:"compliance_score"`
	ViolationsByKind map[string]int    `json:"violations_by_kind,omitempty"`
	Cost             types.CostFigures `json:"cost"`
	DataQuality      types.DataQuality `json:"data_quality"`
}

// SuggestPayload carries tag suggestions for one resource.
type SuggestPayload struct {
	ResourceID  string             `json:"resource_id"`
	Suggestions []types.Suggestion `json:"suggestions"`
	DataQuality types.DataQuality  `json:"data_quality"`
}

// CostAttributionPayload is the grouped attribution report. Every
// figure keeps its cost_source breakdown; the service-level records
// carry service_average provenance and are reported alongside the
// per-resource figures, never summed into them.
type CostAttributionPayload struct {
	GroupBy      string                `json:"group_by"`
	Figures      types.CostFigures     `json:"figures"`
	Groups       []cost.Group          `json:"groups"`
	ServiceCosts []provider.CostRecord `json:"service_costs,omitempty"`
	DataQuality  types.DataQuality     `json:"data_quality"`
}

// PolicyCheckPayload reports the outcome of validating a policy
// document without installing it.
type PolicyCheckPayload struct {
	Valid        bool   `json:"valid"`
	Version      string `json:"version,omitempty"`
	RequiredTags int    `json:"required_tags"`
	OptionalTags int    `json:"optional_tags"`
	CustomRules  int    `json:"custom_rules"`
}

// evaluateScope scans the requested scope and evaluates it, recording
// the snapshot for trend queries.
func (c *Catalog) evaluateScope(ctx context.Context, params map[string]any) (*types.ComplianceResult, []types.Resource, error) {
	resourceTypes, regions, resourceIDs, err := c.scanScope(params)
	if err != nil {
		return nil, nil, err
	}

	scan, err := c.scanner.Scan(ctx, resourceTypes, regions)
	if err != nil {
		return nil, nil, err
	}
	resources := filterByID(scan.Resources, resourceIDs)

	result, err := c.engine.Evaluate(ctx, resources, c.policy, scan.Quality)
	if err != nil {
		return nil, nil, err
	}
	telemetry.ViolationsFound.Add(ctx, int64(len(result.Violations)))
	c.history.append(*result)
	return result, resources, nil
}

func (c *Catalog) checkTagCompliance(ctx context.Context, params map[string]any) (any, error) {
	result, _, err := c.evaluateScope(ctx, params)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Catalog) getComplianceSummary(ctx context.Context, params map[string]any) (any, error) {
	result, _, err := c.evaluateScope(ctx, params)
	if err != nil {
		return nil, err
	}

	byKind := make(map[string]int)
	for _, v := range result.Violations {
		byKind[string(v.Kind)]++
	}
	return &SummaryPayload{
		PolicyVersion:    result.PolicyVersion,
		TotalResources:   result.TotalResources,
		CompliantCount:   result.CompliantCount,
		ComplianceScore:  result.ComplianceScore,
		ViolationsByKind: byKind,
		Cost:             result.Cost,
		DataQuality:      result.DataQuality,
	}, nil
}

func (c *Catalog) suggestTags(ctx context.Context, params map[string]any) (any, error) {
	resourceID, err := requiredStringParam(params, "resource_id")
	if err != nil {
		return nil, err
	}
	resourceTypes, regions, _, err := c.scanScope(params)
	if err != nil {
		return nil, err
	}

	scan, err := c.scanner.Scan(ctx, resourceTypes, regions)
	if err != nil {
		return nil, err
	}

	target, ok := types.BuildResourceMap(scan.Resources)[resourceID]
	if !ok {
		return nil, faults.Newf(faults.KindInvalidInput, "resource %s not found in scanned scope", resourceID)
	}

	// Peers share the target's type and region; the target itself is
	// excluded so it cannot vote for its own current values.
	var peers []types.Resource
	for _, r := range scan.Resources {
		if r.ID != target.ID && r.Type == target.Type && r.Region == target.Region {
			peers = append(peers, r)
		}
	}

	return &SuggestPayload{
		ResourceID:  target.ID,
		Suggestions: c.engine.Suggest(&target, peers, c.policy),
		DataQuality: scan.Quality,
	}, nil
}

func (c *Catalog) getCostAttribution(ctx context.Context, params map[string]any) (any, error) {
	groupBy, ok, err := stringParam(params, "group_by")
	if err != nil {
		return nil, err
	}
	if !ok {
		groupBy = cost.GroupByType
	}
	if _, err := validate.Enum("group_by", groupBy, groupByKeys); err != nil {
		return nil, err
	}

	var tagName string
	if groupBy == cost.GroupByTag {
		if tagName, err = requiredStringParam(params, "tag"); err != nil {
			return nil, err
		}
	}

	result, resources, err := c.evaluateScope(ctx, params)
	if err != nil {
		return nil, err
	}

	return &CostAttributionPayload{
		GroupBy:      groupBy,
		Figures:      result.Cost,
		Groups:       cost.GroupBy(resources, result.Violations, groupBy, tagName),
		ServiceCosts: c.serviceCosts(ctx, resources),
		DataQuality:  result.DataQuality,
	}, nil
}

// serviceCosts asks the cost provider for service-level figures for
// each scanned type over the trailing month. Lookup failures degrade
// the report rather than failing the call; a missing record is not a
// zero cost.
func (c *Catalog) serviceCosts(ctx context.Context, resources []types.Resource) []provider.CostRecord {
	if c.costs == nil {
		return nil
	}
	now := time.Now()
	window := provider.TimeRange{Start: now.AddDate(0, -1, 0), End: now}

	seen := make(map[string]bool)
	var records []provider.CostRecord
	for _, r := range resources {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		recs, err := c.costs.GetCostData(ctx, r.Type, window)
		if err != nil {
			c.logger.LogFault(ctx, "cost data for "+r.Type, err)
			continue
		}
		records = append(records, recs...)
	}
	return records
}

func (c *Catalog) getComplianceTrend(ctx context.Context, params map[string]any) (any, error) {
	granularity, ok, err := stringParam(params, "granularity")
	if err != nil {
		return nil, err
	}
	if !ok {
		granularity = "day"
	}
	if _, err := validate.Enum("granularity", granularity, granularities); err != nil {
		return nil, err
	}
	return policy.Trend(c.history.snapshots(), granularity)
}

func (c *Catalog) validateTagPolicy(ctx context.Context, params map[string]any) (any, error) {
	raw, ok := params["policy"].(string)
	if !ok || raw == "" {
		return nil, faults.New(faults.KindInvalidInput, "parameter policy is required")
	}
	doc, err := validate.Document("policy", raw)
	if err != nil {
		return nil, err
	}

	parsed, err := policy.Parse([]byte(doc))
	if err != nil {
		return nil, faults.Wrap(faults.KindInvalidInput, "policy document rejected", err)
	}
	return &PolicyCheckPayload{
		Valid:        true,
		Version:      parsed.Version,
		RequiredTags: len(parsed.RequiredTags),
		OptionalTags: len(parsed.OptionalTags),
		CustomRules:  len(parsed.CustomRules),
	}, nil
}
