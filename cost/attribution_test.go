package cost

import (
	"math"
	"testing"

	"github.com/yairfalse/tagvet/types"
)

func resources() []types.Resource {
	return []types.Resource{
		{ID: "i-1", Type: "ec2", Region: "us-east-1", MonthlyCost: 30, CostSource: types.CostActual, Tags: map[string]string{"Team": "platform"}},
		{ID: "i-2", Type: "ec2", Region: "eu-west-1", MonthlyCost: 70, CostSource: types.CostEstimated},
		{ID: "db-1", Type: "rds", Region: "us-east-1", MonthlyCost: 100, CostSource: types.CostServiceAverage, Tags: map[string]string{"Team": "data"}},
	}
}

func TestAttributeSumsExactly(t *testing.T) {
	violations := []types.Violation{{ResourceID: "i-2", TagName: "Owner", Kind: types.ViolationMissingRequired}}

	figures := Attribute(resources(), violations)
	if figures.TotalMonthly != 200 {
		t.Errorf("total = %v", figures.TotalMonthly)
	}
	if figures.AttributableMonthly != 130 || figures.GapMonthly != 70 {
		t.Errorf("attributable/gap = %v/%v", figures.AttributableMonthly, figures.GapMonthly)
	}
	if figures.AttributableMonthly+figures.GapMonthly != figures.TotalMonthly {
		t.Error("attributable + gap != total")
	}
	if math.Abs(figures.GapPercent-0.35) > 1e-9 {
		t.Errorf("gap percent = %v", figures.GapPercent)
	}
}

func TestAttributeKeepsProvenanceSeparate(t *testing.T) {
	figures := Attribute(resources(), nil)
	want := map[string]float64{"actual": 30, "estimated": 70, "service_average": 100}
	for source, amount := range want {
		if figures.BySource[source] != amount {
			t.Errorf("BySource[%s] = %v, want %v", source, figures.BySource[source], amount)
		}
	}
}

func TestAttributeEmptySet(t *testing.T) {
	figures := Attribute(nil, nil)
	if figures.TotalMonthly != 0 || figures.GapPercent != 0 {
		t.Errorf("empty set figures = %+v", figures)
	}
}

func TestGroupByType(t *testing.T) {
	groups := GroupBy(resources(), nil, GroupByType, "")
	if len(groups) != 2 {
		t.Fatalf("groups = %d", len(groups))
	}
	// Sorted by key: ec2 before rds.
	if groups[0].Key != "ec2" || groups[0].ResourceCount != 2 || groups[0].Figures.TotalMonthly != 100 {
		t.Errorf("ec2 group = %+v", groups[0])
	}
	if groups[1].Key != "rds" || groups[1].Figures.TotalMonthly != 100 {
		t.Errorf("rds group = %+v", groups[1])
	}
}

func TestGroupByTagWithUntaggedBucket(t *testing.T) {
	groups := GroupBy(resources(), nil, GroupByTag, "Team")
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	want := []string{"(untagged)", "data", "platform"}
	if len(keys) != 3 || keys[0] != want[0] || keys[1] != want[1] || keys[2] != want[2] {
		t.Errorf("group keys = %v, want %v", keys, want)
	}
}

func TestGroupByCarriesViolationsIntoBucketGap(t *testing.T) {
	violations := []types.Violation{{ResourceID: "i-1", TagName: "Owner"}}
	groups := GroupBy(resources(), violations, GroupByRegion, "")

	for _, g := range groups {
		if g.Key == "us-east-1" {
			if g.Figures.GapMonthly != 30 {
				t.Errorf("us-east-1 gap = %v, want 30", g.Figures.GapMonthly)
			}
		}
	}
}
