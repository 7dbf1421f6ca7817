package tools

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yairfalse/tagvet/audit"
	"github.com/yairfalse/tagvet/faults"
	"github.com/yairfalse/tagvet/policy"
	"github.com/yairfalse/tagvet/provider"
	"github.com/yairfalse/tagvet/ratelimit"
	"github.com/yairfalse/tagvet/scanner"
	"github.com/yairfalse/tagvet/session"
	"github.com/yairfalse/tagvet/types"
)

const testPolicy = `
version: "1"
required_tags:
  - name: Owner
    validation_regex: '[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}'
  - name: Environment
    allowed_values: [production, staging, development]
`

// stubProvider serves fixed resources per region; regions in failRegions
// error on every call. It records the resource types requested so tests
// can assert scan scope.
type stubProvider struct {
	resources   map[string][]types.Resource
	failRegions map[string]bool

	mu     sync.Mutex
	listed map[string]bool
}

func (p *stubProvider) ListResources(ctx context.Context, resourceType, region string) ([]types.Resource, error) {
	p.mu.Lock()
	if p.listed == nil {
		p.listed = make(map[string]bool)
	}
	p.listed[resourceType] = true
	p.mu.Unlock()

	if p.failRegions[region] {
		return nil, faults.New(faults.KindUpstreamUnavailable, "region endpoint down")
	}
	var out []types.Resource
	for _, r := range p.resources[region] {
		if r.Type == resourceType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (p *stubProvider) SupportedTypes() []string { return []string{"ec2", "rds"} }
func (p *stubProvider) AccountID() string        { return "123456789012" }

func (p *stubProvider) GetCostData(ctx context.Context, resourceType string, timeRange provider.TimeRange) ([]provider.CostRecord, error) {
	var total float64
	var count int
	for _, batch := range p.resources {
		for _, r := range batch {
			if r.Type == resourceType {
				total += r.MonthlyCost
				count++
			}
		}
	}
	if count == 0 {
		return nil, nil
	}
	return []provider.CostRecord{{
		Service:       resourceType,
		MonthlyCost:   total,
		Source:        types.CostServiceAverage,
		ResourceCount: count,
	}}, nil
}

func (p *stubProvider) typesListed() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.listed))
	for t := range p.listed {
		out[t] = true
	}
	return out
}

// memSink collects audit records in memory.
type memSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (s *memSink) Append(ctx context.Context, r audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *memSink) QueryByCorrelation(ctx context.Context, id string) ([]audit.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Record
	for _, r := range s.records {
		if r.CorrelationID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memSink) QueryByTime(ctx context.Context, start, end time.Time) ([]audit.Record, error) {
	return nil, nil
}

func (s *memSink) last(t *testing.T) audit.Record {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		t.Fatal("no audit records")
	}
	return s.records[len(s.records)-1]
}

type fixture struct {
	catalog *Catalog
	sink    *memSink
	stub    *stubProvider
}

func newFixture(t *testing.T, budgetCeiling int64) *fixture {
	t.Helper()

	p, err := policy.Parse([]byte(testPolicy))
	if err != nil {
		t.Fatal(err)
	}
	engine, err := policy.NewEngine(p)
	if err != nil {
		t.Fatal(err)
	}

	stub := &stubProvider{
		resources: map[string][]types.Resource{
			"us-east-1": {
				{ID: "i-good", Type: "ec2", Region: "us-east-1", Name: "api-prod", MonthlyCost: 60, CostSource: types.CostActual,
					Tags: map[string]string{"Owner": "a@b.com", "Environment": "production"}},
				{ID: "i-bare", Type: "ec2", Region: "us-east-1", Name: "etl-dev", MonthlyCost: 40, CostSource: types.CostEstimated},
				{ID: "i-peer1", Type: "ec2", Region: "us-east-1", MonthlyCost: 10, CostSource: types.CostActual,
					Tags: map[string]string{"Owner": "team@corp.io", "Environment": "production"}},
				{ID: "i-peer2", Type: "ec2", Region: "us-east-1", MonthlyCost: 10, CostSource: types.CostActual,
					Tags: map[string]string{"Owner": "team@corp.io", "Environment": "production"}},
			},
		},
		failRegions: map[string]bool{},
	}

	limiter := ratelimit.New(ratelimit.Options{
		MinInterval: time.Microsecond,
		MaxInFlight: 8,
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
	})
	store := session.NewMemoryCounterStore()
	sink := &memSink{}

	catalog := New(Options{
		Policy:  p,
		Engine:  engine,
		Scanner: scanner.New(stub, limiter, time.Minute),
		Costs:   stub,
		Budget:  session.NewBudgetTracker(store, budgetCeiling, time.Hour),
		Loops:   session.NewLoopDetector(store, time.Minute, 3),
		Sink:    sink,
		Regions: []string{"us-east-1"},
	})
	return &fixture{catalog: catalog, sink: sink, stub: stub}
}

func TestCheckTagComplianceEndToEnd(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolCheckTagCompliance, map[string]any{
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke failed: %+v", fail)
	}

	result, ok := payload.(*types.ComplianceResult)
	if !ok {
		t.Fatalf("payload type %T", payload)
	}
	if result.TotalResources != 4 || result.CompliantCount != 3 {
		t.Errorf("total/compliant = %d/%d", result.TotalResources, result.CompliantCount)
	}
	// i-bare misses both required tags.
	if len(result.Violations) != 2 {
		t.Fatalf("violations = %d", len(result.Violations))
	}
	for _, v := range result.Violations {
		if v.ResourceID != "i-bare" || v.Kind != types.ViolationMissingRequired {
			t.Errorf("unexpected violation %+v", v)
		}
	}
	if result.DataQuality.Status != types.DataComplete {
		t.Errorf("data quality = %s", result.DataQuality.Status)
	}

	record := f.sink.last(t)
	if record.Status != audit.StatusOK || record.Tool != ToolCheckTagCompliance {
		t.Errorf("audit record = %+v", record)
	}
}

func TestCheckTagComplianceFiltersByResourceID(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolCheckTagCompliance, map[string]any{
		"resource_types": []any{"ec2"},
		"resource_ids":   []any{"i-bare"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	result := payload.(*types.ComplianceResult)
	if result.TotalResources != 1 || result.CompliantCount != 0 {
		t.Errorf("total/compliant = %d/%d, want only the requested resource",
			result.TotalResources, result.CompliantCount)
	}
	for _, v := range result.Violations {
		if v.ResourceID != "i-bare" {
			t.Errorf("violation outside requested scope: %+v", v)
		}
	}
}

func TestInvokeRejectsInjection(t *testing.T) {
	f := newFixture(t, 100)

	_, fail := f.catalog.Invoke(context.Background(), "s-1", ToolCheckTagCompliance, map[string]any{
		"regions": []any{"us-east-1; rm -rf /"},
	})
	if fail == nil {
		t.Fatal("expected rejection")
	}
	if fail.Kind != faults.KindSecurityViolation || fail.Category != "shell_metacharacters" {
		t.Errorf("sanitized = %+v", fail)
	}
	if fail.CorrelationID == "" {
		t.Error("no correlation ID")
	}
	if strings.Contains(fail.Message, "rm -rf") {
		t.Error("sanitized message echoes attacker input")
	}
	if record := f.sink.last(t); record.Status != audit.StatusRejected {
		t.Errorf("audit status = %s", record.Status)
	}
}

func TestInvokeBudgetExhausted(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for _, rt := range []string{"ec2", "rds"} {
		if _, fail := f.catalog.Invoke(ctx, "s-1", ToolGetComplianceSummary, map[string]any{
			"resource_types": []any{rt},
		}); fail != nil {
			t.Fatalf("call %s: %+v", rt, fail)
		}
	}
	_, fail := f.catalog.Invoke(ctx, "s-1", ToolGetComplianceSummary, nil)
	if fail == nil || fail.Kind != faults.KindBudgetExhausted {
		t.Errorf("third call = %+v, want budget_exhausted", fail)
	}
}

func TestInvokeLoopDetected(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	params := map[string]any{"resource_types": []any{"ec2"}}

	for i := 0; i < 2; i++ {
		if _, fail := f.catalog.Invoke(ctx, "s-1", ToolCheckTagCompliance, params); fail != nil {
			t.Fatalf("call %d: %+v", i+1, fail)
		}
	}
	_, fail := f.catalog.Invoke(ctx, "s-1", ToolCheckTagCompliance, params)
	if fail == nil || fail.Kind != faults.KindLoopDetected {
		t.Errorf("third identical call = %+v, want loop_detected", fail)
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	f := newFixture(t, 100)
	_, fail := f.catalog.Invoke(context.Background(), "s-1", "delete_everything", nil)
	if fail == nil || fail.Kind != faults.KindInvalidInput {
		t.Errorf("unknown tool = %+v", fail)
	}
}

func TestFailureNeverLeaksInternalDetail(t *testing.T) {
	f := newFixture(t, 100)
	f.stub.failRegions["us-east-1"] = true

	_, fail := f.catalog.Invoke(context.Background(), "s-1", ToolCheckTagCompliance, nil)
	if fail == nil || fail.Kind != faults.KindUpstreamUnavailable {
		t.Fatalf("fail = %+v", fail)
	}
	if strings.Contains(fail.Message, "endpoint") || strings.Contains(fail.Message, "partition") {
		t.Errorf("message leaks internals: %q", fail.Message)
	}

	// The audit sink keeps the detail under the same correlation ID.
	records, err := f.sink.QueryByCorrelation(context.Background(), fail.CorrelationID)
	if err != nil || len(records) != 1 {
		t.Fatalf("audit lookup = %v, %d records", err, len(records))
	}
	if records[0].Status != audit.StatusFailed || records[0].FaultKind != string(faults.KindUpstreamUnavailable) {
		t.Errorf("audit record = %+v", records[0])
	}
}

func TestPartialScanMarkedPartial(t *testing.T) {
	f := newFixture(t, 100)
	f.stub.failRegions["eu-west-1"] = true

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolCheckTagCompliance, map[string]any{
		"regions":        []any{"us-east-1", "eu-west-1"},
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	result := payload.(*types.ComplianceResult)
	if result.DataQuality.Status != types.DataPartial {
		t.Errorf("status = %s", result.DataQuality.Status)
	}
	if len(result.DataQuality.FailedRegions) != 1 || result.DataQuality.FailedRegions[0] != "eu-west-1" {
		t.Errorf("failed_regions = %v", result.DataQuality.FailedRegions)
	}
	if result.TotalResources != 4 {
		t.Errorf("counts include failed region: %d", result.TotalResources)
	}
	if record := f.sink.last(t); record.Status != audit.StatusPartial {
		t.Errorf("audit status = %s", record.Status)
	}
}

func TestGetComplianceSummary(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolGetComplianceSummary, map[string]any{
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	summary := payload.(*SummaryPayload)
	if summary.ComplianceScore != 0.75 {
		t.Errorf("score = %v", summary.ComplianceScore)
	}
	if summary.ViolationsByKind["missing_required"] != 2 {
		t.Errorf("by kind = %v", summary.ViolationsByKind)
	}
	if summary.Cost.TotalMonthly != 120 || summary.Cost.GapMonthly != 40 {
		t.Errorf("cost = %+v", summary.Cost)
	}
	if summary.Cost.BySource["actual"] != 80 || summary.Cost.BySource["estimated"] != 40 {
		t.Errorf("cost sources conflated: %v", summary.Cost.BySource)
	}
}

func TestSuggestTags(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolSuggestTags, map[string]any{
		"resource_id": "i-bare",
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	suggest := payload.(*SuggestPayload)
	if suggest.ResourceID != "i-bare" {
		t.Errorf("resource = %s", suggest.ResourceID)
	}

	byStrategy := map[string]types.Suggestion{}
	for _, s := range suggest.Suggestions {
		byStrategy[s.TagName+"/"+s.Strategy] = s
		if s.Confidence < 0 || s.Confidence > 1 {
			t.Errorf("confidence out of range: %+v", s)
		}
	}
	// Name "etl-dev" matches the Environment keyword table.
	if s, ok := byStrategy["Environment/keyword"]; !ok || s.Value != "development" {
		t.Errorf("keyword suggestion = %+v", byStrategy)
	}
	// Two of three tagged peers agree on Owner.
	if s, ok := byStrategy["Owner/peer_majority"]; !ok || s.Value != "team@corp.io" {
		t.Errorf("peer suggestion missing: %+v", byStrategy)
	} else if s.Confidence < 0.19 || s.Confidence > 0.21 {
		t.Errorf("peer confidence = %v, want 2/3 share scaled by sample 3", s.Confidence)
	}
	// Name minus "-dev" suffix.
	if s, ok := byStrategy["Application/context"]; !ok || s.Value != "etl" {
		t.Errorf("context suggestion = %+v", byStrategy)
	}
}

func TestSuggestTagsUnknownResource(t *testing.T) {
	f := newFixture(t, 100)
	_, fail := f.catalog.Invoke(context.Background(), "s-1", ToolSuggestTags, map[string]any{
		"resource_id": "i-missing",
	})
	if fail == nil || fail.Kind != faults.KindInvalidInput {
		t.Errorf("fail = %+v", fail)
	}
}

func TestSuggestTagsHonorsResourceTypeScope(t *testing.T) {
	f := newFixture(t, 100)

	_, fail := f.catalog.Invoke(context.Background(), "s-1", ToolSuggestTags, map[string]any{
		"resource_id":    "i-bare",
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	listed := f.stub.typesListed()
	if listed["rds"] {
		t.Errorf("narrowed request scanned rds anyway: %v", listed)
	}
	if !listed["ec2"] {
		t.Errorf("requested type not scanned: %v", listed)
	}
}

func TestGetCostAttributionGrouped(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolGetCostAttribution, map[string]any{
		"groupBy":        "resource_type",
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	attribution := payload.(*CostAttributionPayload)
	if attribution.GroupBy != "resource_type" {
		t.Errorf("alias groupBy not resolved: %s", attribution.GroupBy)
	}
	if attribution.Figures.AttributableMonthly+attribution.Figures.GapMonthly != attribution.Figures.TotalMonthly {
		t.Error("attributable + gap != total")
	}
	if len(attribution.Groups) != 1 || attribution.Groups[0].Key != "ec2" {
		t.Errorf("groups = %+v", attribution.Groups)
	}
}

func TestGetCostAttributionServiceLevelFigures(t *testing.T) {
	f := newFixture(t, 100)

	payload, fail := f.catalog.Invoke(context.Background(), "s-1", ToolGetCostAttribution, map[string]any{
		"resource_types": []any{"ec2"},
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	attribution := payload.(*CostAttributionPayload)
	if len(attribution.ServiceCosts) != 1 {
		t.Fatalf("service costs = %+v", attribution.ServiceCosts)
	}
	record := attribution.ServiceCosts[0]
	if record.Service != "ec2" || record.ResourceCount != 4 {
		t.Errorf("record = %+v", record)
	}
	if record.Source != types.CostServiceAverage {
		t.Errorf("source = %s, must stay service_average", record.Source)
	}
	// Service-level records ride alongside the per-resource figures,
	// never summed into them.
	if attribution.Figures.TotalMonthly != 120 {
		t.Errorf("total = %v", attribution.Figures.TotalMonthly)
	}
}

func TestGetCostAttributionRejectsBadGroupBy(t *testing.T) {
	f := newFixture(t, 100)
	_, fail := f.catalog.Invoke(context.Background(), "s-1", ToolGetCostAttribution, map[string]any{
		"group_by": "owner_email",
	})
	if fail == nil || fail.Kind != faults.KindInvalidInput {
		t.Errorf("fail = %+v, want invalid_input (never silently defaulted)", fail)
	}
}

func TestGetComplianceTrend(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	// Two scans feed the history.
	for _, rt := range []string{"ec2", "rds"} {
		if _, fail := f.catalog.Invoke(ctx, "s-1", ToolCheckTagCompliance, map[string]any{
			"resource_types": []any{rt},
		}); fail != nil {
			t.Fatalf("scan: %+v", fail)
		}
	}

	payload, fail := f.catalog.Invoke(ctx, "s-1", ToolGetComplianceTrend, map[string]any{
		"granularity": "day",
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	report := payload.(*types.TrendReport)
	if len(report.Points) != 1 || report.Points[0].Scans != 2 {
		t.Errorf("report = %+v", report)
	}

	_, fail = f.catalog.Invoke(ctx, "s-1", ToolGetComplianceTrend, map[string]any{
		"granularity": "hourly",
	})
	if fail == nil || fail.Kind != faults.KindInvalidInput {
		t.Errorf("bad granularity = %+v", fail)
	}
}

func TestValidateTagPolicy(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	payload, fail := f.catalog.Invoke(ctx, "s-1", ToolValidateTagPolicy, map[string]any{
		"policy": testPolicy,
	})
	if fail != nil {
		t.Fatalf("invoke: %+v", fail)
	}
	check := payload.(*PolicyCheckPayload)
	if !check.Valid || check.Version != "1" || check.RequiredTags != 2 {
		t.Errorf("check = %+v", check)
	}

	_, fail = f.catalog.Invoke(ctx, "s-1", ToolValidateTagPolicy, map[string]any{
		"policy": "version: \"1\"\nrequired_tags: []\n",
	})
	if fail == nil || fail.Kind != faults.KindInvalidInput {
		t.Errorf("empty rules = %+v", fail)
	}
}

func TestNamesStable(t *testing.T) {
	f := newFixture(t, 100)
	names := f.catalog.Names()
	if len(names) != 6 || names[0] != ToolCheckTagCompliance {
		t.Errorf("names = %v", names)
	}
}
