package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/yairfalse/tagvet/types"
)

// regoEvaluator runs author-supplied rego rules per resource. Rules
// live in the policy document so the tag policy stays the single
// source of truth; each rule is compiled once into a prepared query.
type regoEvaluator struct {
	queries []preparedRule
}

type preparedRule struct {
	rule  CustomRule
	query rego.PreparedEvalQuery
}

// regoInput is the document a custom rule sees as `input`.
type regoInput struct {
	Resource types.Resource `json:"resource"`
}

func compileRego(ctx context.Context, rules []CustomRule) (*regoEvaluator, error) {
	e := &regoEvaluator{}
	for _, r := range rules {
		query := rego.New(
			rego.Query("data.tagvet.violations"),
			rego.Module(r.Name, r.Rego),
		)
		prepared, err := query.PrepareForEval(ctx)
		if err != nil {
			return nil, fmt.Errorf("compile custom rule %s: %w", r.Name, err)
		}
		e.queries = append(e.queries, preparedRule{rule: r, query: prepared})
	}
	return e, nil
}

// evaluate runs every custom rule against one resource. A rule emits
// violations as a set of objects with tag_name and message fields.
func (e *regoEvaluator) evaluate(ctx context.Context, r *types.Resource) ([]types.Violation, error) {
	var out []types.Violation
	input := regoInput{Resource: *r}

	for _, pr := range e.queries {
		results, err := pr.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return nil, fmt.Errorf("evaluate custom rule %s: %w", pr.rule.Name, err)
		}
		for _, res := range results {
			for _, expr := range res.Expressions {
				out = append(out, parseRegoViolations(r.ID, pr.rule, expr.Value)...)
			}
		}
	}
	return out, nil
}

// parseRegoViolations converts the dynamic OPA result into typed
// violations. OPA returns arbitrary JSON shapes; this is the one place
// the dynamic boundary is crossed.
func parseRegoViolations(resourceID string, rule CustomRule, value any) []types.Violation {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []types.Violation
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		v := types.Violation{
			ResourceID: resourceID,
			Kind:       types.ViolationCustom,
			Severity:   rule.Severity,
		}
		if s, ok := obj["tag_name"].(string); ok {
			v.TagName = s
		}
		if s, ok := obj["message"].(string); ok {
			v.Message = s
		}
		if s, ok := obj["severity"].(string); ok && s != "" {
			v.Severity = s
		}
		out = append(out, v)
	}
	return out
}
