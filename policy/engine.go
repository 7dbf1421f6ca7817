package policy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagvet/cost"
	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/types"
)

// Engine evaluates resources against a tag policy.
//
// READ-ONLY: the engine reports violations and suggestions. It never
// tags, modifies, or deletes anything.
type Engine struct {
	logger *telemetry.Logger
	tracer trace.Tracer
	rego   *regoEvaluator
}

// NewEngine creates a compliance engine. Custom rego rules in the
// policy, if any, are compiled up front so a bad rule fails at
// construction rather than mid-scan.
func NewEngine(p *TagPolicy) (*Engine, error) {
	e := &Engine{
		logger: telemetry.NewLogger("compliance-engine"),
		tracer: otel.Tracer("compliance-engine"),
	}
	if len(p.CustomRules) > 0 {
		re, err := compileRego(context.Background(), p.CustomRules)
		if err != nil {
			return nil, err
		}
		e.rego = re
	}
	return e, nil
}

// Evaluate checks every resource against the policy. Per-resource
// checks share no state, so evaluation order cannot change the result;
// violations are emitted by resource input order, then rule
// declaration order, so identical input yields identical output.
func (e *Engine) Evaluate(ctx context.Context, resources []types.Resource, p *TagPolicy, quality types.DataQuality) (*types.ComplianceResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.evaluate",
		trace.WithAttributes(attribute.Int("resource.count", len(resources))))
	defer span.End()

	result := &types.ComplianceResult{
		PolicyVersion:  p.Version,
		TotalResources: len(resources),
		DataQuality:    quality,
		EvaluatedAt:    time.Now().UTC(),
	}

	for i := range resources {
		violations, err := e.evaluateResource(ctx, &resources[i], p)
		if err != nil {
			return nil, err
		}
		if len(violations) == 0 {
			result.CompliantCount++
		}
		result.Violations = append(result.Violations, violations...)
	}

	result.ComplianceScore = Score(result.CompliantCount, result.TotalResources)
	result.Cost = cost.Attribute(resources, result.Violations)

	e.logger.WithContext(ctx).Info().
		Int("total", result.TotalResources).
		Int("compliant", result.CompliantCount).
		Int("violations", len(result.Violations)).
		Float64("score", result.ComplianceScore).
		Str("policy_version", p.Version).
		Msg("evaluation complete")

	return result, nil
}

// evaluateResource applies every applicable rule to one resource.
// The first violated tag carries the resource's full cost impact.
func (e *Engine) evaluateResource(ctx context.Context, r *types.Resource, p *TagPolicy) ([]types.Violation, error) {
	var violations []types.Violation

	for i := range p.RequiredTags {
		rule := &p.RequiredTags[i]
		if !rule.AppliesToType(r.Type) {
			continue
		}
		if v, ok := checkRule(r, rule, p.Naming); ok {
			violations = append(violations, v)
		}
	}

	if e.rego != nil {
		custom, err := e.rego.evaluate(ctx, r)
		if err != nil {
			return nil, faults.Wrap(faults.KindInternal, "custom rule evaluation", err)
		}
		violations = append(violations, custom...)
	}

	for i := range violations {
		violations[i].CostSource = r.CostSource
		if i == 0 {
			violations[i].CostImpact = r.MonthlyCost
		}
	}
	return violations, nil
}

func checkRule(r *types.Resource, rule *RequiredTagRule, naming NamingRules) (types.Violation, bool) {
	value, present := r.Tag(rule.Name, naming.CaseSensitiveKeys)
	if !present {
		return types.Violation{
			ResourceID: r.ID,
			TagName:    rule.Name,
			Kind:       types.ViolationMissingRequired,
			Severity:   "error",
			Message:    "required tag is missing",
		}, true
	}
	switch rule.ValueAllowed(value) {
	case "invalid_value":
		return types.Violation{
			ResourceID: r.ID,
			TagName:    rule.Name,
			Kind:       types.ViolationInvalidValue,
			Severity:   "error",
			Message:    "value not in allowed set",
		}, true
	case "invalid_format":
		return types.Violation{
			ResourceID: r.ID,
			TagName:    rule.Name,
			Kind:       types.ViolationInvalidFormat,
			Severity:   "error",
			Message:    "value does not match required format",
		}, true
	}
	return types.Violation{}, false
}

// Score computes compliant/total, defined as 1.0 for an empty set.
func Score(compliant, total int) float64 {
	if total == 0 {
		return 1.0
	}
	return float64(compliant) / float64(total)
}
