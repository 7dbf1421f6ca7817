// Package tools exposes the read-only tool catalog an agent invokes.
// Every invocation passes through the same guard pipeline before it
// touches the compliance engine: alias resolution, input validation,
// budget charge, loop detection. Failures come back sanitized with a
// correlation ID; the full detail lands only in the audit sink.
package tools

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagvet/audit"
	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/policy"
	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/scanner"
	"github.com/yairfalse/tagvet/session"
	"github.com/yairfalse/tagvet/telemetry"
	"github.com/yairfalse/tagvet/validate"
)

// Tool names in the catalog.
const (
	ToolCheckTagCompliance   = "check_tag_compliance"
	ToolGetComplianceSummary = "get_compliance_summary"
	ToolSuggestTags          = "suggest_tags"
	ToolGetCostAttribution   = "get_cost_attribution"
	ToolGetComplianceTrend   = "get_compliance_trend"
	ToolValidateTagPolicy    = "validate_tag_policy"
)

// Catalog wires the guard pipeline around the tool handlers.
type Catalog struct {
	policy  *policy.TagPolicy
	engine  *policy.Engine
	scanner *scanner.Scanner
	costs   provider.CostProvider
	budget  *session.BudgetTracker
	loops   *session.LoopDetector
	sink    audit.Sink
	history *history
	regions []string
	logger  *telemetry.Logger

	handlers map[string]handler
}

type handler func(ctx context.Context, params map[string]any) (any, error)

// Options collects the catalog's collaborators.
type Options struct {
	Policy  *policy.TagPolicy
	Engine  *policy.Engine
	Scanner *scanner.Scanner
	Costs   provider.CostProvider // optional; attribution omits service figures without it
	Budget  *session.BudgetTracker
	Loops   *session.LoopDetector
	Sink    audit.Sink
	// Regions scanned when a call does not narrow them.
	Regions []string
}

// New builds the catalog.
func New(opts Options) *Catalog {
	c := &Catalog{
		policy:  opts.Policy,
		engine:  opts.Engine,
		scanner: opts.Scanner,
		costs:   opts.Costs,
		budget:  opts.Budget,
		loops:   opts.Loops,
		sink:    opts.Sink,
		history: newHistory(),
		regions: opts.Regions,
		logger:  telemetry.NewLogger("tool-catalog"),
	}
	c.handlers = map[string]handler{
		ToolCheckTagCompliance:   c.checkTagCompliance,
		ToolGetComplianceSummary: c.getComplianceSummary,
		ToolSuggestTags:          c.suggestTags,
		ToolGetCostAttribution:   c.getCostAttribution,
		ToolGetComplianceTrend:   c.getComplianceTrend,
		ToolValidateTagPolicy:    c.validateTagPolicy,
	}
	return c
}

// Names returns the catalog's tool names in a stable order.
func (c *Catalog) Names() []string {
	return []string{
		ToolCheckTagCompliance,
		ToolGetComplianceSummary,
		ToolSuggestTags,
		ToolGetCostAttribution,
		ToolGetComplianceTrend,
		ToolValidateTagPolicy,
	}
}

// Invoke runs one tool call through the full pipeline. On success the
// payload is tool-specific; on failure the caller gets only the
// sanitized triple, never internal text.
func (c *Catalog) Invoke(ctx context.Context, sessionID, toolName string, params map[string]any) (any, *faults.Sanitized) {
	ctx, span := telemetry.Tracer.Start(ctx, "tools.invoke",
		trace.WithAttributes(attribute.String("tool", toolName)))
	defer span.End()

	correlationID := audit.NewCorrelationID()
	start := time.Now()
	telemetry.ToolInvocations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tool", toolName)))

	payload, status, err := c.run(ctx, sessionID, toolName, params)

	c.appendAudit(ctx, correlationID, sessionID, toolName, params, status, err, time.Since(start))

	if err != nil {
		telemetry.ToolRejections.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", toolName),
			attribute.String("kind", string(faults.KindOf(err))),
		))
		c.logger.LogRejection(ctx, toolName, sessionID, err)
		sanitized := faults.Sanitize(err, correlationID)
		return nil, &sanitized
	}
	return payload, nil
}

// run is the guard pipeline proper. Order matters: nothing charges the
// budget before the input is known to be safe, and nothing reaches a
// handler before budget and loop checks pass.
func (c *Catalog) run(ctx context.Context, sessionID, toolName string, params map[string]any) (any, audit.Status, error) {
	h, ok := c.handlers[toolName]
	if !ok {
		return nil, audit.StatusRejected, faults.Newf(faults.KindInvalidInput, "unknown tool %q", toolName)
	}

	params = validate.ResolveAliases(params)
	if err := validateBag(toolName, params); err != nil {
		return nil, audit.StatusRejected, err
	}
	if err := c.budget.Charge(ctx, sessionID); err != nil {
		return nil, audit.StatusRejected, err
	}
	if err := c.loops.Check(ctx, sessionID, toolName, params); err != nil {
		return nil, audit.StatusRejected, err
	}

	payload, err := h(ctx, params)
	switch {
	case err != nil && faults.KindOf(err) == faults.KindInvalidInput:
		return nil, audit.StatusRejected, err
	case err != nil:
		return nil, audit.StatusFailed, err
	case isPartial(payload):
		return payload, audit.StatusPartial, nil
	default:
		return payload, audit.StatusOK, nil
	}
}

// documentParams lists, per tool, the parameters validated by their
// own grammar instead of the generic injection bank.
var documentParams = map[string]map[string]bool{
	ToolValidateTagPolicy: {"policy": true},
}

// validateBag runs the generic walk over the bag, diverting
// document-shaped parameters to the structural validator first.
func validateBag(toolName string, params map[string]any) error {
	docs := documentParams[toolName]
	if len(docs) == 0 {
		return validate.Params(params)
	}

	generic := make(map[string]any, len(params))
	for key, value := range params {
		if !docs[key] {
			generic[key] = value
			continue
		}
		s, ok := value.(string)
		if !ok {
			return faults.Newf(faults.KindInvalidInput, "parameter %s must be a string", key)
		}
		if _, err := validate.Document(key, s); err != nil {
			return err
		}
	}
	return validate.Params(generic)
}

func (c *Catalog) appendAudit(ctx context.Context, correlationID, sessionID, toolName string, params map[string]any, status audit.Status, callErr error, duration time.Duration) {
	record := audit.NewRecord(correlationID, sessionID, toolName, params, status, callErr, duration)
	if err := c.sink.Append(ctx, record); err != nil {
		// The call outcome stands even if auditing it failed; losing
		// the record is logged, not propagated to the agent.
		c.logger.LogFault(ctx, "audit append", err)
		return
	}
	telemetry.AuditRecordsStored.Add(ctx, 1)
}
